package main

import (
	"context"
	"testing"
	"time"
)

func TestWithProcessTimeoutZeroIsUnbounded(t *testing.T) {
	ctx, cancel := withProcessTimeout(context.Background(), 0)
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("expected no deadline for a zero timeout")
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("expected live context, got %v", err)
	}
}

func TestWithProcessTimeoutSetsDeadline(t *testing.T) {
	ctx, cancel := withProcessTimeout(context.Background(), time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > time.Minute {
		t.Fatalf("unexpected deadline distance %s", remaining)
	}
}
