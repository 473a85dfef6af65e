package domain

import (
	"time"
)

// MaxGoals is the most learning goals a learner can hold at once.
const MaxGoals = 4

// GoalCompleteProgress is the progress value at which a goal counts as completed.
const GoalCompleteProgress = 100

// Learner is the engine's read-only view of a learner record.
// The profile store owns identity, activity and goals; the engine owns
// only the EngagementMeta side channel, updated through LearnerProvider.Patch.
type Learner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Grade int    `json:"grade"`

	LastActiveAt   time.Time `json:"last_active_at"`
	LoginStreak    Streak    `json:"login_streak"`
	PracticeStreak Streak    `json:"practice_streak"`

	Goals []Goal `json:"goals"`

	QuestionsAsked    int `json:"questions_asked"`
	ConversationsDone int `json:"conversations_done"`

	Meta EngagementMeta `json:"engagement_meta"`
}

// Streak tracks consecutive days of an activity.
type Streak struct {
	Current  int       `json:"current"`
	Longest  int       `json:"longest"`
	LastDate time.Time `json:"last_date"`
}

// Active reports whether the streak was alive as of its last recorded date.
func (s Streak) Active() bool {
	return s.Current > 0
}

// BrokenAsOf reports whether a previously active streak has lapsed: the
// last recorded day is neither today nor yesterday relative to now.
func (s Streak) BrokenAsOf(now time.Time) bool {
	if !s.Active() || s.LastDate.IsZero() {
		return false
	}
	return daysBetween(s.LastDate, now) > 1
}

// Goal is a learning goal with per-topic progress.
type Goal struct {
	ID       string  `json:"id"`
	Subject  string  `json:"subject"`
	Progress float64 `json:"progress"` // 0-100
	Topics   []Topic `json:"topics,omitempty"`
}

// Topic is a sub-area of a goal.
type Topic struct {
	Name     string  `json:"name"`
	Progress float64 `json:"progress"` // 0-100
}

// Completed reports whether the goal has crossed the completion threshold.
func (g Goal) Completed() bool {
	return g.Progress >= GoalCompleteProgress
}

// EngagementMeta is the engine-owned side channel on a learner record.
// Everything else treats it as opaque.
type EngagementMeta struct {
	LastNudgeShownAt  *time.Time        `json:"last_nudge_shown_at,omitempty"`
	LastSuggestionAt  *time.Time        `json:"last_suggestion_at,omitempty"`
	CelebratedGoalIDs []string          `json:"celebrated_goal_ids,omitempty"`
	NudgeInteractions map[string]string `json:"nudge_interactions,omitempty"` // nudge id -> last action
}

// Celebrated reports whether a goal_completed nudge was already shown for the goal.
func (m EngagementMeta) Celebrated(goalID string) bool {
	for _, id := range m.CelebratedGoalIDs {
		if id == goalID {
			return true
		}
	}
	return false
}

// AgeBand buckets learner age for message tone selection.
type AgeBand string

const (
	BandYoung  AgeBand = "young"  // roughly 9-11
	BandMiddle AgeBand = "middle" // roughly 12-14
	BandTeen   AgeBand = "teen"   // 15 and up
)

// Band returns the learner's age band. Unknown or out-of-range ages map to
// the middle band so template lookup always has a home.
func (l *Learner) Band() AgeBand {
	switch {
	case l.Age <= 0:
		return BandMiddle
	case l.Age <= 11:
		return BandYoung
	case l.Age <= 14:
		return BandMiddle
	default:
		return BandTeen
	}
}

// DaysInactive returns whole calendar days since the learner was last active.
// A learner with no recorded activity returns -1.
func (l *Learner) DaysInactive(now time.Time) int {
	if l.LastActiveAt.IsZero() {
		return -1
	}
	d := daysBetween(l.LastActiveAt, now)
	if d < 0 {
		return 0
	}
	return d
}

// CompletionRatio returns completed conversations over questions asked.
// ok is false when the learner has not asked anything yet.
func (l *Learner) CompletionRatio() (ratio float64, ok bool) {
	if l.QuestionsAsked <= 0 {
		return 0, false
	}
	return float64(l.ConversationsDone) / float64(l.QuestionsAsked), true
}

// HasHistory reports whether the record carries any activity evidence.
// Fresh accounts classify as risk "none" rather than being warned.
func (l *Learner) HasHistory() bool {
	return !l.LastActiveAt.IsZero() ||
		l.LoginStreak.Current > 0 || l.LoginStreak.Longest > 0 ||
		l.PracticeStreak.Current > 0 || l.PracticeStreak.Longest > 0 ||
		l.QuestionsAsked > 0 || l.ConversationsDone > 0
}

// GoalByID returns the goal with the given id, or nil.
func (l *Learner) GoalByID(id string) *Goal {
	for i := range l.Goals {
		if l.Goals[i].ID == id {
			return &l.Goals[i]
		}
	}
	return nil
}

// NewlyCompletedGoals returns completed goals that have not yet been celebrated.
func (l *Learner) NewlyCompletedGoals() []Goal {
	var out []Goal
	for _, g := range l.Goals {
		if g.Completed() && !l.Meta.Celebrated(g.ID) {
			out = append(out, g)
		}
	}
	return out
}

// daysBetween counts calendar-day boundaries crossed between from and to,
// using the local date of each instant.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}
