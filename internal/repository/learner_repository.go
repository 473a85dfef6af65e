package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
)

// LearnerRepository is the Postgres learner provider.
type LearnerRepository struct {
	db *sql.DB
}

// NewLearnerRepository creates a Postgres-backed learner repository.
func NewLearnerRepository(db *sql.DB) *LearnerRepository {
	return &LearnerRepository{db: db}
}

const learnerColumns = `id, name, age, grade, last_active_at,
	login_streak, practice_streak, goals, questions_asked, conversations_done,
	last_nudge_shown_at, last_suggestion_at, celebrated_goal_ids, nudge_interactions`

// Get retrieves a learner by ID.
func (r *LearnerRepository) Get(ctx context.Context, id string) (*domain.Learner, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+learnerColumns+" FROM learners WHERE id = $1", id)
	l, err := scanLearner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLearnerNotFound
	}
	return l, err
}

// Patch updates the engagement side channel and returns the fresh record.
func (r *LearnerRepository) Patch(ctx context.Context, id string, patch learner.Patch) (*domain.Learner, error) {
	if patch.Meta == nil {
		return r.Get(ctx, id)
	}

	interactions, err := nullJSON(patch.Meta.NudgeInteractions)
	if err != nil {
		return nil, fmt.Errorf("encode nudge interactions: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE learners SET
			last_nudge_shown_at = $2,
			last_suggestion_at  = $3,
			celebrated_goal_ids = $4,
			nudge_interactions  = $5,
			updated_at          = now()
		WHERE id = $1`,
		id,
		patch.Meta.LastNudgeShownAt,
		patch.Meta.LastSuggestionAt,
		pq.Array(patch.Meta.CelebratedGoalIDs),
		interactions,
	)
	if err != nil {
		return nil, fmt.Errorf("patch learner: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrLearnerNotFound
	}
	return r.Get(ctx, id)
}

// Put creates or replaces a learner record.
func (r *LearnerRepository) Put(ctx context.Context, l *domain.Learner) error {
	if l.ID == "" {
		return fmt.Errorf("%w: learner id required", domain.ErrInvalidInput)
	}

	loginStreak, err := nullJSON(l.LoginStreak)
	if err != nil {
		return fmt.Errorf("encode login streak: %w", err)
	}
	practiceStreak, err := nullJSON(l.PracticeStreak)
	if err != nil {
		return fmt.Errorf("encode practice streak: %w", err)
	}
	goals, err := nullJSON(l.Goals)
	if err != nil {
		return fmt.Errorf("encode goals: %w", err)
	}
	interactions, err := nullJSON(l.Meta.NudgeInteractions)
	if err != nil {
		return fmt.Errorf("encode nudge interactions: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO learners (`+learnerColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			grade = EXCLUDED.grade,
			last_active_at = EXCLUDED.last_active_at,
			login_streak = EXCLUDED.login_streak,
			practice_streak = EXCLUDED.practice_streak,
			goals = EXCLUDED.goals,
			questions_asked = EXCLUDED.questions_asked,
			conversations_done = EXCLUDED.conversations_done,
			last_nudge_shown_at = EXCLUDED.last_nudge_shown_at,
			last_suggestion_at = EXCLUDED.last_suggestion_at,
			celebrated_goal_ids = EXCLUDED.celebrated_goal_ids,
			nudge_interactions = EXCLUDED.nudge_interactions,
			updated_at = now()`,
		l.ID, l.Name, l.Age, l.Grade, nullTime(l.LastActiveAt),
		loginStreak, practiceStreak, goals, l.QuestionsAsked, l.ConversationsDone,
		l.Meta.LastNudgeShownAt, l.Meta.LastSuggestionAt,
		pq.Array(l.Meta.CelebratedGoalIDs), interactions,
	)
	if err != nil {
		return fmt.Errorf("upsert learner: %w", err)
	}
	return nil
}

// Delete removes a learner record.
func (r *LearnerRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM learners WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete learner: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLearnerNotFound
	}
	return nil
}

// List returns all learner IDs.
func (r *LearnerRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM learners ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLearner(row rowScanner) (*domain.Learner, error) {
	var (
		l              domain.Learner
		lastActive     sql.NullTime
		loginStreak    pqtype.NullRawMessage
		practiceStreak pqtype.NullRawMessage
		goals          pqtype.NullRawMessage
		interactions   pqtype.NullRawMessage
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.Age, &l.Grade, &lastActive,
		&loginStreak, &practiceStreak, &goals, &l.QuestionsAsked, &l.ConversationsDone,
		&l.Meta.LastNudgeShownAt, &l.Meta.LastSuggestionAt,
		pq.Array(&l.Meta.CelebratedGoalIDs), &interactions,
	)
	if err != nil {
		return nil, err
	}

	if lastActive.Valid {
		l.LastActiveAt = lastActive.Time
	}
	if err := decodeJSON(loginStreak, &l.LoginStreak); err != nil {
		return nil, fmt.Errorf("decode login streak: %w", err)
	}
	if err := decodeJSON(practiceStreak, &l.PracticeStreak); err != nil {
		return nil, fmt.Errorf("decode practice streak: %w", err)
	}
	if err := decodeJSON(goals, &l.Goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	if err := decodeJSON(interactions, &l.Meta.NudgeInteractions); err != nil {
		return nil, fmt.Errorf("decode nudge interactions: %w", err)
	}
	return &l, nil
}

func nullJSON(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func decodeJSON(raw pqtype.NullRawMessage, dest any) error {
	if !raw.Valid {
		return nil
	}
	return json.Unmarshal(raw.RawMessage, dest)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Ensure the repository satisfies the provider interfaces.
var (
	_ learner.Provider = (*LearnerRepository)(nil)
	_ learner.Writer   = (*LearnerRepository)(nil)
)
