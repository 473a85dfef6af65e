package queue

import (
	"sync"
	"testing"
	"time"
)

func TestNewConsumer_DefaultsZeroConfig(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{})

	if c.workers != 3 {
		t.Errorf("Default workers = %d; want 3", c.workers)
	}
	if c.prefetch != 1 {
		t.Errorf("Default prefetch = %d; want 1", c.prefetch)
	}
}

func TestNewConsumer_PreservesCustomConfig(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{Workers: 10, Prefetch: 5})

	if c.workers != 10 {
		t.Errorf("Custom workers = %d; want 10", c.workers)
	}
	if c.prefetch != 5 {
		t.Errorf("Custom prefetch = %d; want 5", c.prefetch)
	}
}

func TestNudgeConsumer_SubscribeUnsubscribe(t *testing.T) {
	// Only testing the handler map management; no connection needed.
	nc := &NudgeConsumer{
		handlers: make(map[string]NudgeHandler),
	}

	nc.Subscribe("l1", func(event *NudgeEvent) {})

	nc.handlersMu.RLock()
	_, exists := nc.handlers["l1"]
	nc.handlersMu.RUnlock()

	if !exists {
		t.Error("Handler should be registered after Subscribe")
	}

	nc.Unsubscribe("l1")

	nc.handlersMu.RLock()
	_, exists = nc.handlers["l1"]
	nc.handlersMu.RUnlock()

	if exists {
		t.Error("Handler should be removed after Unsubscribe")
	}
}

func TestNudgeConsumer_Subscribe_ConcurrentSafe(t *testing.T) {
	nc := &NudgeConsumer{
		handlers: make(map[string]NudgeHandler),
	}

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			learnerID := string(rune('a'+idx%26)) + "-learner"

			nc.Subscribe(learnerID, func(event *NudgeEvent) {})

			// Small delay to increase chance of concurrent access
			time.Sleep(time.Microsecond)

			nc.Unsubscribe(learnerID)
		}(i)
	}

	wg.Wait()

	nc.handlersMu.RLock()
	count := len(nc.handlers)
	nc.handlersMu.RUnlock()

	if count != 0 {
		t.Errorf("All handlers should be unsubscribed, got %d remaining", count)
	}
}

func TestNudgeConsumer_Subscribe_OverwritesPrevious(t *testing.T) {
	nc := &NudgeConsumer{
		handlers: make(map[string]NudgeHandler),
	}

	called1 := false
	called2 := false

	nc.Subscribe("l1", func(event *NudgeEvent) {
		called1 = true
	})
	nc.Subscribe("l1", func(event *NudgeEvent) {
		called2 = true
	})

	nc.handlersMu.RLock()
	handler, ok := nc.handlers["l1"]
	nc.handlersMu.RUnlock()

	if !ok {
		t.Fatal("Handler should exist")
	}

	handler(&NudgeEvent{})

	if called1 {
		t.Error("First handler should NOT have been called (was overwritten)")
	}
	if !called2 {
		t.Error("Second handler should have been called")
	}
}

func TestNudgeConsumer_Unsubscribe_NonExistent(t *testing.T) {
	nc := &NudgeConsumer{
		handlers: make(map[string]NudgeHandler),
	}

	// Unsubscribing a non-existent handler should not panic
	nc.Unsubscribe("non-existent-learner")
}

func TestNudgeConsumer_Stop_NilCancelFunc(t *testing.T) {
	nc := &NudgeConsumer{
		handlers: make(map[string]NudgeHandler),
	}

	// Stop with nil cancelFunc should not panic
	nc.Stop()
}

func TestConsumer_Stop_NilCancelFunc(t *testing.T) {
	c := &Consumer{}

	// Stop with nil cancelFunc should not panic
	c.Stop()
}
