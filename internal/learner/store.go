package learner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/storage/local"
)

const collectionLearners = "learners"

// Store is the JSON-file learner provider used by the local backend.
// Records live under <data-dir>/learners/<id>.json.
type Store struct {
	store *local.Store

	// Patch is read-modify-write on a single file; serialize it so two
	// concurrent patches cannot drop each other's fields.
	mu sync.Mutex
}

// NewStore creates a learner store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &Store{store: store}, nil
}

// Get retrieves a learner by ID.
func (s *Store) Get(_ context.Context, id string) (*domain.Learner, error) {
	var l domain.Learner
	if err := s.store.Load(collectionLearners, id, &l); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, domain.ErrLearnerNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Patch applies a partial update and returns the updated record.
func (s *Store) Patch(ctx context.Context, id string, patch Patch) (*domain.Learner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Meta != nil {
		l.Meta = *patch.Meta
	}
	if err := s.store.Save(collectionLearners, id, l); err != nil {
		return nil, fmt.Errorf("save learner: %w", err)
	}
	return l, nil
}

// Put creates or replaces a learner record.
func (s *Store) Put(_ context.Context, l *domain.Learner) error {
	if l.ID == "" {
		return fmt.Errorf("%w: learner id required", domain.ErrInvalidInput)
	}
	return s.store.Save(collectionLearners, l.ID, l)
}

// Delete removes a learner record.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := s.store.Delete(collectionLearners, id); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return domain.ErrLearnerNotFound
		}
		return err
	}
	return nil
}

// List returns all learner IDs.
func (s *Store) List(_ context.Context) ([]string, error) {
	return s.store.List(collectionLearners)
}
