package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
)

// mockStore is an in-memory learner store implementing both the Provider
// and Writer interfaces.
type mockStore struct {
	mu       sync.Mutex
	learners map[string]*domain.Learner
}

var (
	_ learner.Provider = (*mockStore)(nil)
	_ learner.Writer   = (*mockStore)(nil)
)

func newMockStore() *mockStore {
	return &mockStore{learners: make(map[string]*domain.Learner)}
}

func (m *mockStore) Get(_ context.Context, id string) (*domain.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.learners[id]
	if !ok {
		return nil, domain.ErrLearnerNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockStore) Patch(_ context.Context, id string, patch learner.Patch) (*domain.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.learners[id]
	if !ok {
		return nil, domain.ErrLearnerNotFound
	}
	if patch.Meta != nil {
		l.Meta = *patch.Meta
	}
	cp := *l
	return &cp, nil
}

func (m *mockStore) Put(_ context.Context, l *domain.Learner) error {
	if l.ID == "" {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.learners[l.ID] = &cp
	return nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.learners[id]; !ok {
		return domain.ErrLearnerNotFound
	}
	delete(m.learners, id)
	return nil
}

func (m *mockStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.learners))
	for id := range m.learners {
		ids = append(ids, id)
	}
	return ids, nil
}

// mockHistory is an in-memory interaction log implementing both the
// metrics sink and the history query surface.
type mockHistory struct {
	mu      sync.Mutex
	records []domain.InteractionRecord
	err     error
}

func (m *mockHistory) Publish(_ context.Context, rec domain.InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockHistory) History(_ context.Context, learnerID string, since time.Time) ([]domain.InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.InteractionRecord
	for _, rec := range m.records {
		if rec.LearnerID == learnerID && !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}
