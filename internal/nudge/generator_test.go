package nudge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
	"github.com/felixgeelhaar/rekindle/internal/risk"
)

type mockProvider struct {
	getFn   func(ctx context.Context, id string) (*domain.Learner, error)
	patchFn func(ctx context.Context, id string, patch learner.Patch) (*domain.Learner, error)

	patchCalls int
}

func (m *mockProvider) Get(ctx context.Context, id string) (*domain.Learner, error) {
	return m.getFn(ctx, id)
}

func (m *mockProvider) Patch(ctx context.Context, id string, patch learner.Patch) (*domain.Learner, error) {
	m.patchCalls++
	if m.patchFn != nil {
		return m.patchFn(ctx, id, patch)
	}
	return nil, nil
}

func newTestService(p learner.Provider, production bool) *Service {
	s := NewService(p, learner.NewKeyMutex(), Config{
		Cooldown:   24 * time.Hour,
		TTL:        12 * time.Hour,
		Production: production,
		Thresholds: risk.DefaultThresholds(),
	})
	s.now = func() time.Time { return now }
	return s
}

func atRiskLearner() *domain.Learner {
	l := baseLearner()
	l.LastActiveAt = now.AddDate(0, 0, -5)
	return l
}

func TestGenerate_AtRiskLearnerGetsNudge(t *testing.T) {
	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return atRiskLearner(), nil
		},
	}, true)

	msg, err := svc.Generate(context.Background(), "l1", false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg == nil {
		t.Fatal("Generate() = nil; want nudge for at-risk learner")
	}
	if msg.Trigger != domain.ReasonInactive {
		t.Errorf("Trigger = %s; want inactive", msg.Trigger)
	}
	if msg.ID == "" || msg.LearnerID != "l1" {
		t.Errorf("message identity incomplete: id=%q learner=%q", msg.ID, msg.LearnerID)
	}
	if !msg.ExpiresAt.Equal(now.Add(12 * time.Hour)) {
		t.Errorf("ExpiresAt = %v; want creation time + TTL", msg.ExpiresAt)
	}
}

func TestGenerate_HealthyLearnerGetsNothing(t *testing.T) {
	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return baseLearner(), nil // active today, healthy ratio
		},
	}, true)

	msg, err := svc.Generate(context.Background(), "l1", false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg != nil {
		t.Errorf("Generate() = %+v; want nil for healthy learner", msg)
	}
}

func TestGenerate_CooldownSuppressesRepeat(t *testing.T) {
	l := atRiskLearner()
	shown := now.Add(-2 * time.Hour)
	l.Meta.LastNudgeShownAt = &shown

	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return l, nil
		},
	}, true)

	msg, err := svc.Generate(context.Background(), "l1", false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg != nil {
		t.Errorf("Generate() = %+v; want nil inside cooldown window", msg)
	}
}

func TestGenerate_CooldownExpiresAfterWindow(t *testing.T) {
	l := atRiskLearner()
	shown := now.Add(-25 * time.Hour)
	l.Meta.LastNudgeShownAt = &shown

	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return l, nil
		},
	}, true)

	msg, err := svc.Generate(context.Background(), "l1", false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg == nil {
		t.Error("Generate() = nil; want nudge once the cooldown has elapsed")
	}
}

func TestGenerate_DoesNotAdvanceCooldown(t *testing.T) {
	p := &mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return atRiskLearner(), nil
		},
	}
	svc := newTestService(p, true)

	if _, err := svc.Generate(context.Background(), "l1", false); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if p.patchCalls != 0 {
		t.Errorf("Generate() patched the learner %d times; generation must be side-effect free", p.patchCalls)
	}
}

func TestGenerate_ForceRejectedInProduction(t *testing.T) {
	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			t.Error("provider consulted before the force gate")
			return nil, nil
		},
	}, true)

	_, err := svc.Generate(context.Background(), "l1", true)
	if !errors.Is(err, domain.ErrForceDisabled) {
		t.Errorf("Generate(force) error = %v; want ErrForceDisabled", err)
	}
}

func TestGenerate_ForceBypassesCooldownAndRiskGate(t *testing.T) {
	l := baseLearner() // healthy: no risk signal
	shown := now.Add(-time.Hour)
	l.Meta.LastNudgeShownAt = &shown

	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return l, nil
		},
	}, false)

	msg, err := svc.Generate(context.Background(), "l1", true)
	if err != nil {
		t.Fatalf("Generate(force) error = %v", err)
	}
	if msg == nil {
		t.Fatal("Generate(force) = nil; want a nudge regardless of cooldown and risk")
	}
	if msg.Trigger != domain.ReasonEncouragement {
		t.Errorf("Trigger = %s; want encouragement fallback for healthy learner", msg.Trigger)
	}
}

func TestGenerate_UnknownLearner(t *testing.T) {
	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, id string) (*domain.Learner, error) {
			return nil, domain.ErrLearnerNotFound
		},
	}, true)

	_, err := svc.Generate(context.Background(), "ghost", false)
	if !errors.Is(err, domain.ErrLearnerNotFound) {
		t.Errorf("Generate() error = %v; want ErrLearnerNotFound", err)
	}
}

func TestGenerate_MissingTemplateFailsLoudlyInDev(t *testing.T) {
	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return atRiskLearner(), nil
		},
	}, false)
	svc.catalog = &Catalog{templates: map[domain.ChurnReason]map[domain.AgeBand]Template{}}

	_, err := svc.Generate(context.Background(), "l1", false)
	if !errors.Is(err, domain.ErrTemplateMissing) {
		t.Errorf("Generate() error = %v; want ErrTemplateMissing in development", err)
	}
}

func TestGenerate_MissingTemplateDegradesInProduction(t *testing.T) {
	svc := newTestService(&mockProvider{
		getFn: func(_ context.Context, _ string) (*domain.Learner, error) {
			return atRiskLearner(), nil
		},
	}, true)
	svc.catalog = &Catalog{templates: map[domain.ChurnReason]map[domain.AgeBand]Template{
		domain.ReasonEncouragement: defaultTemplates()[domain.ReasonEncouragement],
	}}

	msg, err := svc.Generate(context.Background(), "l1", false)
	if err != nil {
		t.Fatalf("Generate() error = %v; production must degrade, not fail", err)
	}
	if msg == nil {
		t.Fatal("Generate() = nil; want degraded nudge")
	}
	if msg.Trigger != domain.ReasonInactive {
		t.Errorf("Trigger = %s; degradation must not rewrite the trigger", msg.Trigger)
	}
}
