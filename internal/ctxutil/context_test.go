package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestConversationIDContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		if id := GetConversationID(context.Background()); id != "" {
			t.Errorf("Expected empty string, got %s", id)
		}
	})

	t.Run("with conversation ID", func(t *testing.T) {
		t.Parallel()
		ctx := WithConversationID(context.Background(), "conv-1")
		if id := GetConversationID(ctx); id != "conv-1" {
			t.Errorf("Expected conv-1, got %s", id)
		}
	})
}

func TestActivityIDContext(t *testing.T) {
	t.Parallel()

	ctx := WithActivityID(context.Background(), "act-9")
	if id := GetActivityID(ctx); id != "act-9" {
		t.Errorf("Expected act-9, got %s", id)
	}
	if id := GetActivityID(context.Background()); id != "" {
		t.Errorf("Expected empty string, got %s", id)
	}
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	if _, ok := GetRequestID(context.Background()); ok {
		t.Error("Expected no request ID on empty context")
	}
	if _, ok := GetRequestID(WithRequestID(context.Background(), "")); ok {
		t.Error("Expected empty request ID to be treated as absent")
	}

	ctx := WithRequestID(context.Background(), "req-123")
	id, ok := GetRequestID(ctx)
	if !ok || id != "req-123" {
		t.Errorf("GetRequestID() = %q, %v", id, ok)
	}
	if MustGetRequestID(ctx) != "req-123" {
		t.Error("MustGetRequestID returned wrong value")
	}
}

func TestMustGetRequestID_Panic(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected MustGetRequestID to panic on empty context")
		}
	}()

	MustGetRequestID(context.Background())
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithConversationID(parent, "conv-1")
	parent = WithActivityID(parent, "act-1")
	parent = WithRequestID(parent, "req-1")
	cancel()

	detached := PreserveTracing(parent)

	if detached.Err() != nil {
		t.Errorf("detached context should not be canceled, got %v", detached.Err())
	}
	if _, ok := detached.Deadline(); ok {
		t.Error("detached context should have no deadline")
	}
	if GetConversationID(detached) != "conv-1" {
		t.Error("conversation ID not preserved")
	}
	if GetActivityID(detached) != "act-1" {
		t.Error("activity ID not preserved")
	}
	if id, _ := GetRequestID(detached); id != "req-1" {
		t.Error("request ID not preserved")
	}
}
