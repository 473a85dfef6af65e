package learner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

// ResilientProvider wraps a remote learner provider (the Postgres backend)
// with circuit-breaking, retry and concurrency limiting. The local JSON
// backend does not need it.
type ResilientProvider struct {
	provider       Provider
	circuitBreaker circuitbreaker.CircuitBreaker[*domain.Learner]
	retrier        retry.Retry[*domain.Learner]
	bulkhead       bulkhead.Bulkhead[*domain.Learner]
	logger         *slog.Logger
}

// ResilientConfig tunes the resilience wrapper.
type ResilientConfig struct {
	// MaxConcurrent bounds in-flight provider calls (default: 8).
	MaxConcurrent int
	// Logger for resilience events.
	Logger *slog.Logger
}

// NewResilientProvider wraps a provider with fortify resilience patterns.
func NewResilientProvider(provider Provider, cfg ResilientConfig) *ResilientProvider {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	rp := &ResilientProvider{
		provider: provider,
		logger:   cfg.Logger,
	}

	rp.circuitBreaker = circuitbreaker.New[*domain.Learner](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if rp.logger != nil {
				rp.logger.Warn("learner store circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			}
		},
	})

	rp.retrier = retry.New[*domain.Learner](retry.Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryable,
	})

	rp.bulkhead = bulkhead.New[*domain.Learner](bulkhead.Config{
		MaxConcurrent: maxConcurrent,
		MaxQueue:      maxConcurrent * 2,
		QueueTimeout:  5 * time.Second,
	})

	return rp
}

// Get retrieves a learner through the resilience chain.
func (p *ResilientProvider) Get(ctx context.Context, id string) (*domain.Learner, error) {
	return p.execute(ctx, func(ctx context.Context) (*domain.Learner, error) {
		return p.provider.Get(ctx, id)
	})
}

// Patch applies a partial update through the resilience chain.
func (p *ResilientProvider) Patch(ctx context.Context, id string, patch Patch) (*domain.Learner, error) {
	return p.execute(ctx, func(ctx context.Context) (*domain.Learner, error) {
		return p.provider.Patch(ctx, id, patch)
	})
}

func (p *ResilientProvider) execute(ctx context.Context, op func(context.Context) (*domain.Learner, error)) (*domain.Learner, error) {
	return p.circuitBreaker.Execute(ctx, func(ctx context.Context) (*domain.Learner, error) {
		return p.retrier.Do(ctx, func(ctx context.Context) (*domain.Learner, error) {
			return p.bulkhead.Execute(ctx, op)
		})
	})
}

// isRetryable treats domain errors as final; only infrastructure failures
// are worth another attempt.
func isRetryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrLearnerNotFound),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
