package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type mockProvider struct {
	learner *domain.Learner
	patches []learner.Patch
	getErr  error
}

func (m *mockProvider) Get(_ context.Context, _ string) (*domain.Learner, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.learner, nil
}

func (m *mockProvider) Patch(_ context.Context, _ string, patch learner.Patch) (*domain.Learner, error) {
	m.patches = append(m.patches, patch)
	if patch.Meta != nil {
		m.learner.Meta = *patch.Meta
	}
	return m.learner, nil
}

type captureSink struct {
	records []domain.InteractionRecord
	err     error
}

func (s *captureSink) Publish(_ context.Context, rec domain.InteractionRecord) error {
	s.records = append(s.records, rec)
	return s.err
}

func newTestRecorder(p learner.Provider, sinks ...Sink) *Recorder {
	r := NewRecorder(p, learner.NewKeyMutex(), sinks...)
	r.now = func() time.Time { return now }
	return r
}

func TestRecord_ShownAdvancesCooldownMarker(t *testing.T) {
	p := &mockProvider{learner: &domain.Learner{ID: "l1"}}
	r := newTestRecorder(p)

	err := r.Record(context.Background(), "l1", "n1", domain.ReasonInactive, domain.ActionShown, domain.RiskMedium)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if p.learner.Meta.LastNudgeShownAt == nil || !p.learner.Meta.LastNudgeShownAt.Equal(now) {
		t.Errorf("LastNudgeShownAt = %v; want %v", p.learner.Meta.LastNudgeShownAt, now)
	}
	if got := p.learner.Meta.NudgeInteractions["n1"]; got != "shown" {
		t.Errorf("NudgeInteractions[n1] = %q; want shown", got)
	}
}

func TestRecord_NonShownActionsLeaveCooldownAlone(t *testing.T) {
	for _, action := range []domain.InteractionAction{domain.ActionAccepted, domain.ActionDismissed, domain.ActionExpired} {
		t.Run(string(action), func(t *testing.T) {
			p := &mockProvider{learner: &domain.Learner{ID: "l1"}}
			r := newTestRecorder(p)

			if err := r.Record(context.Background(), "l1", "n1", domain.ReasonInactive, action, domain.RiskLow); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if p.learner.Meta.LastNudgeShownAt != nil {
				t.Errorf("LastNudgeShownAt = %v; only shown may advance it", p.learner.Meta.LastNudgeShownAt)
			}
			if got := p.learner.Meta.NudgeInteractions["n1"]; got != string(action) {
				t.Errorf("NudgeInteractions[n1] = %q; want %q", got, action)
			}
		})
	}
}

func TestRecord_ShownGoalCompletionMarksCelebrated(t *testing.T) {
	p := &mockProvider{learner: &domain.Learner{
		ID:    "l1",
		Goals: []domain.Goal{{ID: "g1", Subject: "algebra", Progress: 100}},
	}}
	r := newTestRecorder(p)

	err := r.Record(context.Background(), "l1", "n1", domain.ReasonGoalCompleted, domain.ActionShown, domain.RiskLow)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !p.learner.Meta.Celebrated("g1") {
		t.Error("completed goal not marked celebrated after shown interaction")
	}
}

func TestRecord_InvalidActionRejectedAtBoundary(t *testing.T) {
	p := &mockProvider{learner: &domain.Learner{ID: "l1"}}
	r := newTestRecorder(p)

	err := r.Record(context.Background(), "l1", "n1", domain.ReasonInactive, domain.InteractionAction("snoozed"), domain.RiskLow)
	if !errors.Is(err, domain.ErrInvalidAction) {
		t.Fatalf("Record() error = %v; want ErrInvalidAction", err)
	}
	if len(p.patches) != 0 {
		t.Error("invalid action must not reach the learner store")
	}
	if got := r.Aggregate("l1"); got.Shown+got.Accepted+got.Dismissed+got.Expired != 0 {
		t.Error("invalid action must not enter the session log")
	}
}

func TestRecord_UnknownLearner(t *testing.T) {
	p := &mockProvider{getErr: domain.ErrLearnerNotFound}
	r := newTestRecorder(p)

	err := r.Record(context.Background(), "ghost", "n1", domain.ReasonInactive, domain.ActionShown, domain.RiskLow)
	if !errors.Is(err, domain.ErrLearnerNotFound) {
		t.Errorf("Record() error = %v; want ErrLearnerNotFound", err)
	}
}

func TestRecord_FansOutToSinks(t *testing.T) {
	p := &mockProvider{learner: &domain.Learner{ID: "l1"}}
	good := &captureSink{}
	bad := &captureSink{err: errors.New("broker down")}
	r := newTestRecorder(p, bad, good)

	err := r.Record(context.Background(), "l1", "n1", domain.ReasonInactive, domain.ActionShown, domain.RiskHigh)
	if err != nil {
		t.Fatalf("Record() error = %v; sink failures must stay best-effort", err)
	}
	if len(good.records) != 1 {
		t.Fatalf("sink received %d records; want 1", len(good.records))
	}
	if got := good.records[0]; got.NudgeID != "n1" || got.Priority != domain.RiskHigh {
		t.Errorf("sink record = %+v", got)
	}
}

func TestAggregate_EmptyLogIsAllZeros(t *testing.T) {
	r := newTestRecorder(&mockProvider{learner: &domain.Learner{ID: "l1"}})

	got := r.Aggregate("l1")
	if got.Shown != 0 || got.Accepted != 0 || got.Dismissed != 0 || got.Expired != 0 {
		t.Errorf("Aggregate() counts = %+v; want zeros", got)
	}
	if got.AcceptanceRate != 0 || got.DismissalRate != 0 {
		t.Errorf("Aggregate() rates = %v/%v; want 0/0, never NaN", got.AcceptanceRate, got.DismissalRate)
	}
}

func TestAggregate_RatesAndTriggerBreakdown(t *testing.T) {
	p := &mockProvider{learner: &domain.Learner{ID: "l1"}}
	r := newTestRecorder(p)
	ctx := context.Background()

	steps := []struct {
		nudge   string
		trigger domain.ChurnReason
		action  domain.InteractionAction
	}{
		{"n1", domain.ReasonInactive, domain.ActionShown},
		{"n1", domain.ReasonInactive, domain.ActionAccepted},
		{"n2", domain.ReasonStreakBroken, domain.ActionShown},
		{"n2", domain.ReasonStreakBroken, domain.ActionDismissed},
		{"n3", domain.ReasonInactive, domain.ActionShown},
		{"n3", domain.ReasonInactive, domain.ActionExpired},
	}
	for _, st := range steps {
		if err := r.Record(ctx, "l1", st.nudge, st.trigger, st.action, domain.RiskMedium); err != nil {
			t.Fatalf("Record(%s %s) error = %v", st.nudge, st.action, err)
		}
	}

	got := r.Aggregate("l1")
	if got.Shown != 3 || got.Accepted != 1 || got.Dismissed != 1 || got.Expired != 1 {
		t.Errorf("counts = %+v", got)
	}
	if want := 1.0 / 3.0; got.AcceptanceRate != want {
		t.Errorf("AcceptanceRate = %v; want %v", got.AcceptanceRate, want)
	}
	if want := 1.0 / 3.0; got.DismissalRate != want {
		t.Errorf("DismissalRate = %v; want %v", got.DismissalRate, want)
	}
	if inactive := got.ByTrigger[domain.ReasonInactive]; inactive.Shown != 2 || inactive.Accepted != 1 {
		t.Errorf("ByTrigger[inactive] = %+v; want shown 2, accepted 1", inactive)
	}
}

func TestReset_ClearsSessionLog(t *testing.T) {
	p := &mockProvider{learner: &domain.Learner{ID: "l1"}}
	r := newTestRecorder(p)

	if err := r.Record(context.Background(), "l1", "n1", domain.ReasonInactive, domain.ActionShown, domain.RiskLow); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	r.Reset("l1")

	if got := r.Aggregate("l1"); got.Shown != 0 {
		t.Errorf("Aggregate() after Reset = %+v; want empty", got)
	}
}
