//go:build integration

package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/queue"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return amqpURL, cleanup
}

func testRecord(action domain.InteractionAction) domain.InteractionRecord {
	return domain.InteractionRecord{
		NudgeID:   uuid.New().String(),
		LearnerID: "l1",
		Trigger:   domain.ReasonInactive,
		Action:    action,
		Priority:  domain.RiskMedium,
		Timestamp: time.Now(),
	}
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := queue.NewConnection("amqp://invalid:5672")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_Producer_PublishInteraction(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	producer := queue.NewProducer(conn)

	ctx := context.Background()
	if err := producer.Publish(ctx, testRecord(domain.ActionShown)); err != nil {
		t.Fatalf("failed to publish interaction: %v", err)
	}

	// Verify by checking queue has a message
	ch := conn.Channel()
	q, err := ch.QueueInspect(queue.InteractionQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}

	if q.Messages != 1 {
		t.Errorf("expected 1 message in queue, got %d", q.Messages)
	}
}

func TestIntegration_Producer_PublishNudge(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	producer := queue.NewProducer(conn)

	msg := &domain.NudgeMessage{
		ID:            uuid.New().String(),
		LearnerID:     "l1",
		Trigger:       domain.ReasonInactive,
		Encouragement: "It's been a while. Your progress is still there.",
		CallToAction:  "A quick session today beats a long one never.",
		Intensity:     domain.IntensityUrgent,
		Priority:      domain.RiskHigh,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(12 * time.Hour),
	}

	ctx := context.Background()
	if err := producer.PublishNudge(ctx, msg); err != nil {
		t.Fatalf("failed to publish nudge: %v", err)
	}

	ch := conn.Channel()
	q, err := ch.QueueInspect(queue.NudgeQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}

	if q.Messages != 1 {
		t.Errorf("expected 1 message in queue, got %d", q.Messages)
	}
}

func TestIntegration_Consumer_ProcessEvents(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Track received events
	var receivedEvents []*queue.InteractionEvent
	var mu sync.Mutex
	receivedCh := make(chan struct{}, 5)

	handler := func(ctx context.Context, event *queue.InteractionEvent) error {
		mu.Lock()
		receivedEvents = append(receivedEvents, event)
		mu.Unlock()

		receivedCh <- struct{}{}
		return nil
	}

	consumer := queue.NewConsumer(conn, handler, queue.ConsumerConfig{
		Workers:  2,
		Prefetch: 1,
	})

	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	producer := queue.NewProducer(conn)
	eventCount := 3
	for i := 0; i < eventCount; i++ {
		if err := producer.Publish(ctx, testRecord(domain.ActionShown)); err != nil {
			t.Fatalf("failed to publish event %d: %v", i, err)
		}
	}

	// Wait for all events to be processed
	for i := 0; i < eventCount; i++ {
		select {
		case <-receivedCh:
			// Event received
		case <-ctx.Done():
			t.Fatalf("timeout waiting for event %d", i)
		}
	}

	mu.Lock()
	if len(receivedEvents) != eventCount {
		t.Errorf("expected %d events, got %d", eventCount, len(receivedEvents))
	}
	mu.Unlock()
}

func TestIntegration_NudgeConsumer_Subscribe(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nudgeConsumer := queue.NewNudgeConsumer(conn)
	if err := nudgeConsumer.Start(ctx); err != nil {
		t.Fatalf("failed to start nudge consumer: %v", err)
	}
	defer nudgeConsumer.Stop()

	// Subscribe to a specific learner
	receivedCh := make(chan *queue.NudgeEvent, 1)
	nudgeConsumer.Subscribe("l1", func(event *queue.NudgeEvent) {
		receivedCh <- event
	})

	producer := queue.NewProducer(conn)
	msg := &domain.NudgeMessage{
		ID:            uuid.New().String(),
		LearnerID:     "l1",
		Trigger:       domain.ReasonGoalCompleted,
		Celebration:   "Goal complete!",
		Encouragement: "That took real persistence.",
		CallToAction:  "Ready to set your next goal?",
		Intensity:     domain.IntensityGentle,
		Priority:      domain.RiskLow,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(12 * time.Hour),
	}

	if err := producer.PublishNudge(ctx, msg); err != nil {
		t.Fatalf("failed to publish nudge: %v", err)
	}

	select {
	case received := <-receivedCh:
		if received.Nudge.ID != msg.ID {
			t.Errorf("expected nudge ID %s, got %s", msg.ID, received.Nudge.ID)
		}
		if received.Nudge.Trigger != domain.ReasonGoalCompleted {
			t.Errorf("expected trigger goal_completed, got %s", received.Nudge.Trigger)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for nudge")
	}

	nudgeConsumer.Unsubscribe("l1")
}

func TestIntegration_Connection_PublishJSON(t *testing.T) {
	amqpURL, cleanup := setupRabbitMQ(t)
	defer cleanup()

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	event := queue.InteractionEvent{
		ID:          uuid.New(),
		Record:      testRecord(domain.ActionAccepted),
		PublishedAt: time.Now(),
	}

	// Direct publish using PublishJSON
	if err := conn.PublishJSON(ctx, queue.InteractionQueueName, event); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	// Verify
	ch := conn.Channel()
	q, err := ch.QueueInspect(queue.InteractionQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}

	if q.Messages != 1 {
		t.Errorf("expected 1 message, got %d", q.Messages)
	}
}
