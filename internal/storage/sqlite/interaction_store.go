package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

// InteractionStore persists nudge interaction history across sessions.
// The in-memory recorder covers the current session; this store is the
// durable record behind it.
type InteractionStore struct {
	db *DB
}

// NewInteractionStore creates a SQLite-backed interaction store.
func NewInteractionStore(db *DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// Publish appends an interaction record. It implements the recorder's
// sink interface.
func (s *InteractionStore) Publish(ctx context.Context, rec domain.InteractionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nudge_interactions (nudge_id, learner_id, reason, action, priority, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.NudgeID, rec.LearnerID, string(rec.Trigger), string(rec.Action), rec.Priority.String(), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// History returns a learner's interactions since a point in time, newest
// first. A zero since returns everything.
func (s *InteractionStore) History(ctx context.Context, learnerID string, since time.Time) ([]domain.InteractionRecord, error) {
	query := `SELECT nudge_id, learner_id, reason, action, priority, occurred_at
	          FROM nudge_interactions WHERE learner_id = ?`
	args := []any{learnerID}
	if !since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var records []domain.InteractionRecord
	for rows.Next() {
		var rec domain.InteractionRecord
		var trigger, action, priority string
		if err := rows.Scan(&rec.NudgeID, &rec.LearnerID, &trigger, &action, &priority, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		rec.Trigger = domain.ChurnReason(trigger)
		rec.Action = domain.InteractionAction(action)
		if rec.Priority, err = domain.ParseRiskLevel(priority); err != nil {
			return nil, fmt.Errorf("parse priority %q: %w", priority, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes interactions older than the cutoff and reports how many
// rows went away.
func (s *InteractionStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM nudge_interactions WHERE occurred_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("prune interactions: %w", err)
	}
	return res.RowsAffected()
}
