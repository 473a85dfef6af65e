package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/metrics"
)

// InteractionRepository persists nudge interactions in Postgres. Like the
// SQLite store it plugs into the recorder as a sink.
type InteractionRepository struct {
	db *sql.DB
}

// NewInteractionRepository creates a Postgres-backed interaction repository.
func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Publish appends an interaction record.
func (r *InteractionRepository) Publish(ctx context.Context, rec domain.InteractionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nudge_interactions (nudge_id, learner_id, reason, action, priority, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.NudgeID, rec.LearnerID, string(rec.Trigger), string(rec.Action),
		rec.Priority.String(), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// History returns a learner's interactions since a point in time, newest
// first. A zero since returns everything.
func (r *InteractionRepository) History(ctx context.Context, learnerID string, since time.Time) ([]domain.InteractionRecord, error) {
	query := `SELECT nudge_id, learner_id, reason, action, priority, occurred_at
	          FROM nudge_interactions WHERE learner_id = $1`
	args := []any{learnerID}
	if !since.IsZero() {
		query += " AND occurred_at >= $2"
		args = append(args, since)
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
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

// Ensure the repository satisfies the recorder's sink interface.
var _ metrics.Sink = (*InteractionRepository)(nil)
