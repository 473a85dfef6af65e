package nudge

import (
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/risk"
)

// Selector picks the single highest-priority reason to address right now.
// The ordering is a design decision, not a tie-break: a broken streak is
// time-sensitive, and a completed goal must be celebrated before any
// warning fires, so the same event can never produce a scolding message
// and a celebratory one at once.
type Selector struct {
	t risk.Thresholds
}

// NewSelector creates a selector sharing the assessor's thresholds.
func NewSelector(t risk.Thresholds) *Selector {
	return &Selector{t: t}
}

// Select returns the trigger to address for this learner.
// risk "none"/"low" with nothing else to say falls back to general
// encouragement, which never claims a priority above "low".
func (s *Selector) Select(l *domain.Learner, now time.Time) domain.ChurnReason {
	if s.streakBrokenSinceLastNudge(l, now) {
		return domain.ReasonStreakBroken
	}

	if len(l.NewlyCompletedGoals()) > 0 {
		return domain.ReasonGoalCompleted
	}

	if ratio, ok := l.CompletionRatio(); ok && ratio < s.t.LowCompletionFloor {
		return domain.ReasonLowTaskCompletion
	}

	if l.DaysInactive(now) >= s.t.InactiveEscalationDays {
		return domain.ReasonInactive
	}

	return domain.ReasonEncouragement
}

// streakBrokenSinceLastNudge reports whether a streak lapsed and no nudge
// has been shown since the lapse. A streak counts as lapsed starting the
// second day after its last recorded date.
func (s *Selector) streakBrokenSinceLastNudge(l *domain.Learner, now time.Time) bool {
	for _, st := range []domain.Streak{l.LoginStreak, l.PracticeStreak} {
		if !st.BrokenAsOf(now) {
			continue
		}
		lapsedAt := st.LastDate.AddDate(0, 0, 2)
		if l.Meta.LastNudgeShownAt == nil || l.Meta.LastNudgeShownAt.Before(lapsedAt) {
			return true
		}
	}
	return false
}

// ClampPriority caps the priority a trigger may claim. Celebration and
// generic encouragement are never urgent warnings.
func ClampPriority(trigger domain.ChurnReason, level domain.RiskLevel) domain.RiskLevel {
	switch trigger {
	case domain.ReasonEncouragement, domain.ReasonGoalCompleted:
		if level > domain.RiskLow {
			return domain.RiskLow
		}
	}
	return level
}
