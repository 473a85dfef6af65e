package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/metrics"
)

// Producer publishes engagement events to the broker.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// Publish sends an interaction record to the interaction queue. It
// implements the metrics recorder's sink interface.
func (p *Producer) Publish(ctx context.Context, rec domain.InteractionRecord) error {
	event := InteractionEvent{
		ID:          uuid.New(),
		Record:      rec,
		PublishedAt: time.Now(),
	}

	if err := p.conn.PublishJSON(ctx, InteractionQueueName, event); err != nil {
		return fmt.Errorf("failed to publish interaction event: %w", err)
	}

	slog.Debug("published interaction event",
		"event_id", event.ID,
		"learner_id", rec.LearnerID,
		"nudge_id", rec.NudgeID,
		"action", rec.Action,
	)

	return nil
}

// PublishNudge sends a generated nudge to the nudge queue for display
// surfaces subscribed to this learner.
func (p *Producer) PublishNudge(ctx context.Context, msg *domain.NudgeMessage) error {
	event := NudgeEvent{
		ID:          uuid.New(),
		Nudge:       *msg,
		PublishedAt: time.Now(),
	}

	if err := p.conn.PublishJSON(ctx, NudgeQueueName, event); err != nil {
		return fmt.Errorf("failed to publish nudge event: %w", err)
	}

	slog.Debug("published nudge event",
		"event_id", event.ID,
		"learner_id", msg.LearnerID,
		"trigger", msg.Trigger,
	)

	return nil
}

// Ensure the producer satisfies the recorder's sink interface.
var _ metrics.Sink = (*Producer)(nil)
