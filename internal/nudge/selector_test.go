package nudge

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/risk"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func baseLearner() *domain.Learner {
	return &domain.Learner{
		ID:                "l1",
		Name:              "Eva",
		Age:               12,
		LastActiveAt:      now,
		QuestionsAsked:    10,
		ConversationsDone: 8,
		Goals: []domain.Goal{
			{ID: "g1", Subject: "fractions", Progress: 40},
		},
	}
}

func TestSelector_BrokenStreakWinsOverLowCompletion(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	l := baseLearner()
	l.LoginStreak = domain.Streak{Current: 5, Longest: 5, LastDate: now.AddDate(0, 0, -3)}
	l.ConversationsDone = 1 // well under the floor

	if got := s.Select(l, now); got != domain.ReasonStreakBroken {
		t.Errorf("Select() = %q; want streak_broken", got)
	}
}

func TestSelector_GoalCompletionBeforeWarnings(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	l := baseLearner()
	l.Goals = append(l.Goals, domain.Goal{ID: "g2", Subject: "algebra", Progress: 100})
	l.ConversationsDone = 1
	l.LastActiveAt = now.AddDate(0, 0, -4)

	if got := s.Select(l, now); got != domain.ReasonGoalCompleted {
		t.Errorf("Select() = %q; want goal_completed (celebration before warning)", got)
	}
}

func TestSelector_AlreadyCelebratedGoalDoesNotRetrigger(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	l := baseLearner()
	l.Goals = []domain.Goal{{ID: "g2", Subject: "algebra", Progress: 100}}
	l.Meta.CelebratedGoalIDs = []string{"g2"}

	if got := s.Select(l, now); got == domain.ReasonGoalCompleted {
		t.Error("Select() re-celebrated an already celebrated goal")
	}
}

func TestSelector_LowCompletionBeforeInactive(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	l := baseLearner()
	l.ConversationsDone = 2
	l.LastActiveAt = now.AddDate(0, 0, -4)

	if got := s.Select(l, now); got != domain.ReasonLowTaskCompletion {
		t.Errorf("Select() = %q; want low_task_completion", got)
	}
}

func TestSelector_Inactive(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	l := baseLearner()
	l.LastActiveAt = now.AddDate(0, 0, -5)

	if got := s.Select(l, now); got != domain.ReasonInactive {
		t.Errorf("Select() = %q; want inactive", got)
	}
}

func TestSelector_FallbackEncouragement(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	if got := s.Select(baseLearner(), now); got != domain.ReasonEncouragement {
		t.Errorf("Select() = %q; want general_encouragement", got)
	}
}

func TestSelector_StreakAddressedByPreviousNudge(t *testing.T) {
	s := NewSelector(risk.DefaultThresholds())

	l := baseLearner()
	l.LoginStreak = domain.Streak{Current: 5, Longest: 5, LastDate: now.AddDate(0, 0, -5)}
	shownAfterBreak := now.AddDate(0, 0, -1)
	l.Meta.LastNudgeShownAt = &shownAfterBreak

	if got := s.Select(l, now); got == domain.ReasonStreakBroken {
		t.Error("Select() re-raised a streak break already addressed by a nudge")
	}
}

func TestClampPriority(t *testing.T) {
	tests := []struct {
		trigger domain.ChurnReason
		in      domain.RiskLevel
		want    domain.RiskLevel
	}{
		{domain.ReasonEncouragement, domain.RiskHigh, domain.RiskLow},
		{domain.ReasonEncouragement, domain.RiskNone, domain.RiskNone},
		{domain.ReasonGoalCompleted, domain.RiskMedium, domain.RiskLow},
		{domain.ReasonStreakBroken, domain.RiskHigh, domain.RiskHigh},
		{domain.ReasonInactive, domain.RiskMedium, domain.RiskMedium},
	}

	for _, tt := range tests {
		if got := ClampPriority(tt.trigger, tt.in); got != tt.want {
			t.Errorf("ClampPriority(%s, %v) = %v; want %v", tt.trigger, tt.in, got, tt.want)
		}
	}
}
