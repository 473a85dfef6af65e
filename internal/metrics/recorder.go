// Package metrics records nudge lifecycle interactions and aggregates
// session-level engagement statistics.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
)

// Sink receives every interaction record after it is accepted. Sinks are
// best-effort: a failing sink is logged, never surfaced to the caller.
// The event queue publisher and the interaction history store both
// implement this.
type Sink interface {
	Publish(ctx context.Context, rec domain.InteractionRecord) error
}

// Summary aggregates one learner's session interactions.
type Summary struct {
	Shown     int `json:"shown"`
	Accepted  int `json:"accepted"`
	Dismissed int `json:"dismissed"`
	Expired   int `json:"expired"`

	AcceptanceRate float64 `json:"acceptance_rate"`
	DismissalRate  float64 `json:"dismissal_rate"`

	ByTrigger map[domain.ChurnReason]TriggerStats `json:"by_trigger,omitempty"`
}

// TriggerStats breaks interactions down per churn reason.
type TriggerStats struct {
	Shown    int `json:"shown"`
	Accepted int `json:"accepted"`
}

// Recorder keeps an append-only per-learner interaction log for the
// current session and advances the nudge cooldown marker when a nudge is
// reported shown. It shares the per-learner mutex with the generator so a
// cooldown check cannot race a marker advance.
type Recorder struct {
	provider learner.Provider
	locks    *learner.KeyMutex
	sinks    []Sink

	mu       sync.Mutex
	sessions map[string][]domain.InteractionRecord

	now func() time.Time
}

// NewRecorder creates an interaction recorder. Sinks are optional.
func NewRecorder(provider learner.Provider, locks *learner.KeyMutex, sinks ...Sink) *Recorder {
	return &Recorder{
		provider: provider,
		locks:    locks,
		sinks:    sinks,
		sessions: make(map[string][]domain.InteractionRecord),
		now:      time.Now,
	}
}

// Record appends an interaction to the session log. A "shown" action
// additionally advances the learner's cooldown marker and, for a
// goal-completion nudge, marks the learner's freshly completed goals as
// celebrated so they are not celebrated twice.
func (r *Recorder) Record(ctx context.Context, learnerID, nudgeID string, trigger domain.ChurnReason, action domain.InteractionAction, priority domain.RiskLevel) error {
	if _, err := domain.ParseInteractionAction(string(action)); err != nil {
		return err
	}

	unlock := r.locks.Lock(learnerID)
	defer unlock()

	now := r.now()
	rec := domain.InteractionRecord{
		NudgeID:   nudgeID,
		LearnerID: learnerID,
		Trigger:   trigger,
		Action:    action,
		Priority:  priority,
		Timestamp: now,
	}

	if err := r.patchMeta(ctx, learnerID, nudgeID, trigger, action, now); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	r.mu.Lock()
	r.sessions[learnerID] = append(r.sessions[learnerID], rec)
	r.mu.Unlock()

	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, rec); err != nil {
			slog.Warn("interaction sink failed",
				"learner_id", learnerID,
				"nudge_id", nudgeID,
				"error", err,
			)
		}
	}

	return nil
}

func (r *Recorder) patchMeta(ctx context.Context, learnerID, nudgeID string, trigger domain.ChurnReason, action domain.InteractionAction, now time.Time) error {
	l, err := r.provider.Get(ctx, learnerID)
	if err != nil {
		return err
	}

	meta := l.Meta
	if meta.NudgeInteractions == nil {
		meta.NudgeInteractions = make(map[string]string)
	}
	meta.NudgeInteractions[nudgeID] = string(action)

	if action == domain.ActionShown {
		meta.LastNudgeShownAt = &now
		if trigger == domain.ReasonGoalCompleted {
			for _, g := range l.NewlyCompletedGoals() {
				meta.CelebratedGoalIDs = append(meta.CelebratedGoalIDs, g.ID)
			}
		}
	}

	_, err = r.provider.Patch(ctx, learnerID, learner.Patch{Meta: &meta})
	return err
}

// Aggregate folds the learner's session log into a summary. Rates are 0
// when nothing has been shown.
func (r *Recorder) Aggregate(learnerID string) Summary {
	r.mu.Lock()
	records := r.sessions[learnerID]
	r.mu.Unlock()

	s := Summary{ByTrigger: make(map[domain.ChurnReason]TriggerStats)}
	for _, rec := range records {
		stats := s.ByTrigger[rec.Trigger]
		switch rec.Action {
		case domain.ActionShown:
			s.Shown++
			stats.Shown++
		case domain.ActionAccepted:
			s.Accepted++
			stats.Accepted++
		case domain.ActionDismissed:
			s.Dismissed++
		case domain.ActionExpired:
			s.Expired++
		}
		s.ByTrigger[rec.Trigger] = stats
	}

	if s.Shown > 0 {
		s.AcceptanceRate = float64(s.Accepted) / float64(s.Shown)
		s.DismissalRate = float64(s.Dismissed) / float64(s.Shown)
	}
	if len(s.ByTrigger) == 0 {
		s.ByTrigger = nil
	}
	return s
}

// Reset clears the session log for a learner. The daemon calls this when a
// tutoring session ends.
func (r *Recorder) Reset(learnerID string) {
	r.mu.Lock()
	delete(r.sessions, learnerID)
	r.mu.Unlock()
}
