package nudge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
	"github.com/felixgeelhaar/rekindle/internal/risk"
)

// Config tunes the nudge generator.
type Config struct {
	// Cooldown is the minimum gap after a shown nudge (default 24h).
	Cooldown time.Duration
	// TTL is the advisory lifetime stamped on generated nudges.
	TTL time.Duration
	// Production rejects the forced-generation override.
	Production bool
	// Thresholds tune the risk assessor and trigger selector.
	Thresholds risk.Thresholds
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Cooldown:   24 * time.Hour,
		TTL:        12 * time.Hour,
		Production: true,
		Thresholds: risk.DefaultThresholds(),
	}
}

// Service orchestrates risk assessment, trigger selection and template
// rendering under the cooldown policy. Generation is speculative: it never
// advances the cooldown marker; only a reported "shown" interaction does.
type Service struct {
	provider learner.Provider
	assessor *risk.Assessor
	selector *Selector
	catalog  *Catalog
	locks    *learner.KeyMutex
	cfg      Config

	now func() time.Time // injectable clock for tests
}

// NewService creates a nudge generator. The key mutex is shared with the
// metrics recorder so cooldown-check and marker-advance serialize per learner.
func NewService(provider learner.Provider, locks *learner.KeyMutex, cfg Config) *Service {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 24 * time.Hour
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Service{
		provider: provider,
		assessor: risk.NewAssessorWithThresholds(cfg.Thresholds),
		selector: NewSelector(cfg.Thresholds),
		catalog:  NewCatalog(),
		locks:    locks,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate produces a nudge for the learner, or nil when there is nothing
// to say (cooling down, or no risk signal). force bypasses the cooldown
// and the risk gate for demo paths and is rejected in production.
func (s *Service) Generate(ctx context.Context, learnerID string, force bool) (*domain.NudgeMessage, error) {
	if force && s.cfg.Production {
		return nil, domain.ErrForceDisabled
	}

	unlock := s.locks.Lock(learnerID)
	defer unlock()

	l, err := s.provider.Get(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Cooling-down: a nudge was shown inside the window. Not an error.
	if !force && s.coolingDown(l, now) {
		return nil, nil
	}

	level := s.assessor.Assess(l, now)
	if level == domain.RiskNone && !force {
		return nil, nil
	}

	trigger := s.selector.Select(l, now)

	tmpl, err := s.resolveTemplate(trigger, l.Band())
	if err != nil {
		return nil, err
	}

	celebration := FindCelebrationPoint(l)
	if celebration == "" {
		celebration = ReplacePlaceholders(tmpl.Celebration, l)
	}

	msg := &domain.NudgeMessage{
		ID:            uuid.New().String(),
		LearnerID:     l.ID,
		Trigger:       trigger,
		Celebration:   celebration,
		Encouragement: ReplacePlaceholders(tmpl.Encouragement, l),
		CallToAction:  ReplacePlaceholders(tmpl.CallToAction, l),
		Intensity:     tmpl.Intensity,
		Priority:      ClampPriority(trigger, level),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.TTL),
	}

	slog.Debug("nudge generated",
		"learner_id", l.ID,
		"trigger", trigger,
		"priority", msg.Priority.String(),
		"forced", force,
	)

	return msg, nil
}

func (s *Service) coolingDown(l *domain.Learner, now time.Time) bool {
	shown := l.Meta.LastNudgeShownAt
	return shown != nil && now.Sub(*shown) < s.cfg.Cooldown
}

// resolveTemplate applies the production degradation policy: a missing
// trigger is a configuration defect that fails loudly in development but
// falls back to generic encouragement in production.
func (s *Service) resolveTemplate(trigger domain.ChurnReason, band domain.AgeBand) (Template, error) {
	tmpl, err := s.catalog.Select(trigger, band)
	if err == nil {
		return tmpl, nil
	}
	if !errors.Is(err, domain.ErrTemplateMissing) {
		return Template{}, err
	}

	if !s.cfg.Production {
		return Template{}, err
	}

	slog.Error("nudge template missing, degrading to encouragement", "trigger", trigger)
	tmpl, ferr := s.catalog.Select(domain.ReasonEncouragement, band)
	if ferr != nil {
		return Template{}, fmt.Errorf("encouragement fallback: %w", ferr)
	}
	return tmpl, nil
}
