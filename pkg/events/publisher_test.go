package events

import (
	"context"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishDispatched(context.Background(), &DispatchedEvent{
		Tool:    "get_order_status",
		Outcome: OutcomeOK,
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *DispatchedEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *DispatchedEvent) error {
		captured = event
		return nil
	})

	event := &DispatchedEvent{
		ID:         "evt-1",
		SessionID:  "sess-1",
		Tool:       "get_order_status",
		Endpoint:   "http://localhost:5001",
		Attempts:   2,
		Outcome:    OutcomeOK,
		DurationMs: 12,
		Timestamp:  "2025-01-01T00:00:00Z",
	}

	err := pub.PublishDispatched(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.Tool != "get_order_status" {
		t.Errorf("expected tool get_order_status, got %s", captured.Tool)
	}
	if captured.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", captured.Attempts)
	}
}

func TestSessionIDContext(t *testing.T) {
	ctx := context.Background()
	if got := SessionIDFromContext(ctx); got != "" {
		t.Errorf("expected empty session id, got %q", got)
	}
	ctx = WithSessionID(ctx, "abc")
	if got := SessionIDFromContext(ctx); got != "abc" {
		t.Errorf("expected session id abc, got %q", got)
	}
}
