package domain

import (
	"time"
)

// RiskLevel is the engine's categorical estimate of disengagement likelihood.
// Derived on demand, never stored.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

// String returns the wire name of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the risk level as its wire name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON decodes a risk level from its wire name.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"none"`:
		*r = RiskNone
	case `"low"`:
		*r = RiskLow
	case `"medium"`:
		*r = RiskMedium
	case `"high"`:
		*r = RiskHigh
	default:
		return ErrInvalidRiskLevel
	}
	return nil
}

// ParseRiskLevel converts a wire name back into a risk level.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "none":
		return RiskNone, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return RiskNone, ErrInvalidRiskLevel
	}
}

// ChurnReason is the trigger selected to justify a nudge.
type ChurnReason string

const (
	ReasonStreakBroken      ChurnReason = "streak_broken"
	ReasonGoalCompleted     ChurnReason = "goal_completed"
	ReasonLowTaskCompletion ChurnReason = "low_task_completion"
	ReasonInactive          ChurnReason = "inactive"
	ReasonEncouragement     ChurnReason = "general_encouragement"
)

// ParseChurnReason validates a trigger string at the boundary. An unknown
// trigger would pollute the session log and per-trigger metrics.
func ParseChurnReason(s string) (ChurnReason, error) {
	switch ChurnReason(s) {
	case ReasonStreakBroken, ReasonGoalCompleted, ReasonLowTaskCompletion,
		ReasonInactive, ReasonEncouragement:
		return ChurnReason(s), nil
	default:
		return "", ErrInvalidTrigger
	}
}

// Intensity is the tone a nudge template carries.
type Intensity string

const (
	IntensityGentle   Intensity = "gentle"
	IntensityModerate Intensity = "moderate"
	IntensityUrgent   Intensity = "urgent"
)

// NudgeMessage is the engine's output: a fully rendered re-engagement
// message. Immutable after creation; interaction outcomes are reported as
// separate InteractionRecords.
type NudgeMessage struct {
	ID            string      `json:"id"`
	LearnerID     string      `json:"learner_id"`
	Trigger       ChurnReason `json:"trigger"`
	Celebration   string      `json:"celebration,omitempty"`
	Encouragement string      `json:"encouragement"`
	CallToAction  string      `json:"call_to_action"`
	Intensity     Intensity   `json:"intensity"`
	Priority      RiskLevel   `json:"priority"`
	CreatedAt     time.Time   `json:"created_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

// Expired reports whether the message's advisory expiration has passed.
func (n *NudgeMessage) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

// InteractionAction is a nudge lifecycle event reported by the caller.
type InteractionAction string

const (
	ActionShown     InteractionAction = "shown"
	ActionAccepted  InteractionAction = "accepted"
	ActionDismissed InteractionAction = "dismissed"
	ActionExpired   InteractionAction = "expired"
)

// ParseInteractionAction validates an action string at the boundary.
// Unknown actions never reach the metrics recorder.
func ParseInteractionAction(s string) (InteractionAction, error) {
	switch InteractionAction(s) {
	case ActionShown, ActionAccepted, ActionDismissed, ActionExpired:
		return InteractionAction(s), nil
	default:
		return "", ErrInvalidAction
	}
}

// InteractionRecord is one nudge lifecycle event. Append-only within a session.
type InteractionRecord struct {
	NudgeID   string            `json:"nudge_id"`
	LearnerID string            `json:"learner_id"`
	Trigger   ChurnReason       `json:"trigger"`
	Action    InteractionAction `json:"action"`
	Priority  RiskLevel         `json:"priority"`
	Timestamp time.Time         `json:"timestamp"`
}
