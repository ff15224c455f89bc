package contextutil

import (
	"context"
	"testing"
	"time"
)

func TestWithTimeout_NilParentNoFallback(t *testing.T) {
	ctx, cancel := WithTimeout(nil, 0)
	t.Cleanup(cancel)
	if ctx == nil {
		t.Fatalf("expected non-nil context")
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("expected nil Err, got %v", err)
	}
}

func TestWithTimeout_FallbackIsCancelable(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 5*time.Second)
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected a deadline")
	}
	cancel()
	if got := ctx.Err(); got != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", got)
	}
}

func TestWithTimeout_CallerDeadlineWins(t *testing.T) {
	want := time.Now().Add(time.Minute)
	parent, cancelParent := context.WithDeadline(context.Background(), want)
	t.Cleanup(cancelParent)

	ctx, cancel := WithTimeout(parent, time.Millisecond)
	t.Cleanup(cancel)
	got, ok := ctx.Deadline()
	if !ok || !got.Equal(want) {
		t.Fatalf("deadline = %v, %v; want %v, true", got, ok, want)
	}
}
