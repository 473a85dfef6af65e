package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes interaction events
type EventHandler func(ctx context.Context, event *InteractionEvent) error

// Consumer consumes interaction events from the queue. An analytics
// collector aggregating engagement across a classroom is the typical
// handler.
type Consumer struct {
	conn       *Connection
	handler    EventHandler
	workers    int
	prefetch   int
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  3,
		Prefetch: 1, // Process one at a time per worker for fairness
	}
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	// Set QoS (prefetch)
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	// Start consuming
	msgs, err := ch.Consume(
		InteractionQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting interaction queue consumer", "workers", c.workers, "prefetch", c.prefetch)

	// Start worker goroutines
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	slog.Info("worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage handles a single message
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	start := time.Now()

	var event InteractionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("failed to unmarshal interaction event",
			"worker_id", workerID,
			"error", err,
		)
		// Reject without requeue for malformed messages
		_ = msg.Reject(false)
		return
	}

	eventCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.handler(eventCtx, &event); err != nil {
		slog.Error("interaction event processing failed",
			"worker_id", workerID,
			"event_id", event.ID,
			"learner_id", event.Record.LearnerID,
			"error", err,
			"duration", time.Since(start),
		)
		// Requeue once; the broker drops it on the second failure.
		_ = msg.Reject(!msg.Redelivered)
		return
	}

	slog.Debug("interaction event processed",
		"worker_id", workerID,
		"event_id", event.ID,
		"action", event.Record.Action,
		"duration", time.Since(start),
	)

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"event_id", event.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}

// NudgeConsumer consumes nudge events (for display surfaces streaming
// nudges to a specific learner's device).
type NudgeConsumer struct {
	conn       *Connection
	handlers   map[string]NudgeHandler
	handlersMu sync.RWMutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NudgeHandler handles a nudge event for a specific learner
type NudgeHandler func(event *NudgeEvent)

// NewNudgeConsumer creates a nudge consumer
func NewNudgeConsumer(conn *Connection) *NudgeConsumer {
	return &NudgeConsumer{
		conn:     conn,
		handlers: make(map[string]NudgeHandler),
	}
}

// Subscribe registers a handler for a learner's nudges
func (nc *NudgeConsumer) Subscribe(learnerID string, handler NudgeHandler) {
	nc.handlersMu.Lock()
	defer nc.handlersMu.Unlock()
	nc.handlers[learnerID] = handler
}

// Unsubscribe removes a handler
func (nc *NudgeConsumer) Unsubscribe(learnerID string) {
	nc.handlersMu.Lock()
	defer nc.handlersMu.Unlock()
	delete(nc.handlers, learnerID)
}

// Start begins consuming nudge events
func (nc *NudgeConsumer) Start(ctx context.Context) error {
	ctx, nc.cancelFunc = context.WithCancel(ctx)

	ch := nc.conn.Channel()

	msgs, err := ch.Consume(
		NudgeQueueName,
		"",    // consumer tag
		true,  // auto-ack (display delivery is fire-and-forget)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start nudge consumer: %w", err)
	}

	nc.wg.Add(1)
	go nc.consume(ctx, msgs)

	return nil
}

func (nc *NudgeConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer nc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var event NudgeEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				slog.Error("failed to unmarshal nudge event", "error", err)
				continue
			}

			// Find handler
			nc.handlersMu.RLock()
			handler, ok := nc.handlers[event.Nudge.LearnerID]
			nc.handlersMu.RUnlock()

			if ok {
				handler(&event)
			}
		}
	}
}

// Stop stops the nudge consumer
func (nc *NudgeConsumer) Stop() {
	if nc.cancelFunc != nil {
		nc.cancelFunc()
	}
	nc.wg.Wait()
}
