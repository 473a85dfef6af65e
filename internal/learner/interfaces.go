package learner

import (
	"context"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

// Provider is the engine's only external collaborator: a learner-record
// store exposing reads and side-channel metadata patches. Implementations
// must return domain.ErrLearnerNotFound for unknown ids.
type Provider interface {
	Get(ctx context.Context, id string) (*domain.Learner, error)
	Patch(ctx context.Context, id string, patch Patch) (*domain.Learner, error)
}

// Patch is a partial learner update. Only the engagement side channel is
// writable through the engine; nil fields are left untouched.
type Patch struct {
	Meta *domain.EngagementMeta
}

// Writer is the optional full-record surface used by the daemon's thin
// profile glue (create/replace). The engine itself never writes learner
// identity or activity fields.
type Writer interface {
	Put(ctx context.Context, l *domain.Learner) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}
