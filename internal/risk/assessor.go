package risk

import (
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

// Thresholds tune how activity signals fold into a severity score.
type Thresholds struct {
	// InactiveEscalationDays is where inactivity starts to weigh heavily.
	InactiveEscalationDays int
	// InactiveHighDays is where inactivity alone reaches "high".
	InactiveHighDays int
	// LowCompletionFloor: a completion ratio below this raises risk.
	LowCompletionFloor float64
	// HighCompletionCeiling: a ratio at or above this never raises risk.
	HighCompletionCeiling float64
}

// DefaultThresholds returns the production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		InactiveEscalationDays: 3,
		InactiveHighDays:       7,
		LowCompletionFloor:     1.0 / 3.0,
		HighCompletionCeiling:  0.8,
	}
}

// Assessor classifies disengagement risk from learner activity signals.
// Pure function of learner state and the supplied clock; no side effects.
type Assessor struct {
	t Thresholds
}

// NewAssessor creates an assessor with default thresholds.
func NewAssessor() *Assessor {
	return &Assessor{t: DefaultThresholds()}
}

// NewAssessorWithThresholds creates an assessor with custom tuning.
func NewAssessorWithThresholds(t Thresholds) *Assessor {
	return &Assessor{t: t}
}

// Severity score bands. Inactivity is the dominant signal: the score it
// contributes is non-decreasing in days inactive, which keeps the final
// classification monotonic as inactivity grows.
const (
	scoreLowMin    = 1
	scoreMediumMin = 3
	scoreHighMin   = 5
)

// Assess classifies a learner's disengagement risk as of now.
func (a *Assessor) Assess(l *domain.Learner, now time.Time) domain.RiskLevel {
	// A brand-new account carries no evidence to warn on.
	if !l.HasHistory() {
		return domain.RiskNone
	}

	score := a.inactivityScore(l, now)

	// A streak that was alive and has lapsed raises risk by a band.
	if l.LoginStreak.BrokenAsOf(now) || l.PracticeStreak.BrokenAsOf(now) {
		score += 2
	}

	// Low task completion raises risk. A ratio at or above the ceiling
	// never does, even when the floor is tuned above the ceiling.
	if ratio, ok := l.CompletionRatio(); ok &&
		ratio < a.t.LowCompletionFloor && ratio < a.t.HighCompletionCeiling {
		score += 2
	}

	// Goal completion is a celebration opportunity, not a warning; it
	// contributes nothing here and is handled by the trigger selector.

	switch {
	case score >= scoreHighMin:
		return domain.RiskHigh
	case score >= scoreMediumMin:
		return domain.RiskMedium
	case score >= scoreLowMin:
		return domain.RiskLow
	default:
		return domain.RiskNone
	}
}

func (a *Assessor) inactivityScore(l *domain.Learner, now time.Time) int {
	days := l.DaysInactive(now)
	switch {
	case days < 0:
		// History exists (streaks/counters) but no last-active stamp.
		return 0
	case days >= a.t.InactiveHighDays:
		return scoreHighMin + 1 // sufficient for "high" on its own
	case days >= a.t.InactiveEscalationDays:
		return scoreMediumMin + 1
	default:
		return days // 0, 1 or 2
	}
}
