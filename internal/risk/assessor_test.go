package risk

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activeLearner(daysAgo int) *domain.Learner {
	last := now.AddDate(0, 0, -daysAgo)
	return &domain.Learner{
		ID:                "l1",
		Age:               12,
		LastActiveAt:      last,
		LoginStreak:       domain.Streak{Current: 0, Longest: 4, LastDate: last},
		QuestionsAsked:    10,
		ConversationsDone: 8,
	}
}

func TestAssessor_NewAccountIsNone(t *testing.T) {
	a := NewAssessor()

	if got := a.Assess(&domain.Learner{ID: "fresh", Age: 10}, now); got != domain.RiskNone {
		t.Errorf("Assess(new account) = %v; want none", got)
	}
}

func TestAssessor_ActiveTodayIsNone(t *testing.T) {
	a := NewAssessor()

	if got := a.Assess(activeLearner(0), now); got != domain.RiskNone {
		t.Errorf("Assess(active today) = %v; want none", got)
	}
}

func TestAssessor_SevenDaysInactiveAloneIsHigh(t *testing.T) {
	a := NewAssessor()

	if got := a.Assess(activeLearner(7), now); got != domain.RiskHigh {
		t.Errorf("Assess(7 days inactive) = %v; want high", got)
	}
}

func TestAssessor_MonotonicInInactivity(t *testing.T) {
	a := NewAssessor()

	prev := domain.RiskNone
	for days := 0; days <= 30; days++ {
		got := a.Assess(activeLearner(days), now)
		if got < prev {
			t.Fatalf("classification decreased at %d days: %v -> %v", days, prev, got)
		}
		prev = got
	}
}

func TestAssessor_BrokenStreakRaisesBand(t *testing.T) {
	a := NewAssessor()

	intact := activeLearner(2)
	broken := activeLearner(2)
	broken.LoginStreak = domain.Streak{Current: 6, Longest: 6, LastDate: now.AddDate(0, 0, -2)}

	base := a.Assess(intact, now)
	raised := a.Assess(broken, now)

	if raised <= base {
		t.Errorf("broken streak: risk %v not above intact learner's %v", raised, base)
	}
}

func TestAssessor_LowCompletionRaises(t *testing.T) {
	a := NewAssessor()

	l := activeLearner(1)
	l.QuestionsAsked = 10
	l.ConversationsDone = 2 // under the 1/3 floor

	base := a.Assess(activeLearner(1), now)
	raised := a.Assess(l, now)

	if raised <= base {
		t.Errorf("low completion: risk %v not above baseline %v", raised, base)
	}
}

func TestAssessor_HighCompletionNeverRaises(t *testing.T) {
	a := NewAssessor()

	healthy := activeLearner(2)
	healthy.QuestionsAsked = 10
	healthy.ConversationsDone = 9

	if got, want := a.Assess(healthy, now), a.Assess(activeLearner(2), now); got != want {
		t.Errorf("healthy completion ratio changed risk: %v vs %v", got, want)
	}
}

func TestAssessor_CeilingHoldsWhenFloorTunedAboveIt(t *testing.T) {
	t1 := DefaultThresholds()
	t1.LowCompletionFloor = 0.9
	t1.HighCompletionCeiling = 0.8
	a := NewAssessorWithThresholds(t1)

	aboveCeiling := activeLearner(2)
	aboveCeiling.QuestionsAsked = 20
	aboveCeiling.ConversationsDone = 17 // 0.85: under the floor, above the ceiling

	base := a.Assess(activeLearner(2), now)
	if got := a.Assess(aboveCeiling, now); got != base {
		t.Errorf("ratio above ceiling changed risk: %v vs baseline %v", got, base)
	}

	belowBoth := activeLearner(2)
	belowBoth.QuestionsAsked = 20
	belowBoth.ConversationsDone = 10 // 0.5: under floor and ceiling

	if got := a.Assess(belowBoth, now); got <= base {
		t.Errorf("ratio below floor and ceiling: risk %v not above baseline %v", got, base)
	}
}

func TestAssessor_GoalCompletionAloneStaysLow(t *testing.T) {
	a := NewAssessor()

	l := activeLearner(0)
	l.Goals = []domain.Goal{{ID: "g1", Subject: "fractions", Progress: 100}}

	if got := a.Assess(l, now); got > domain.RiskLow {
		t.Errorf("goal completion alone produced %v; must never exceed low", got)
	}
}
