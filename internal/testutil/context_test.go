package testutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunWithCancel_RespectsCancellation(t *testing.T) {
	res := RunWithCancel(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 20*time.Millisecond, time.Second)

	if !res.Completed || !res.Cancelled {
		t.Fatalf("result = %+v, want completed and cancelled", res)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", res.Err)
	}
}

func TestRunWithCancel_IgnoresCancellation(t *testing.T) {
	res := RunWithCancel(func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	}, 10*time.Millisecond, 100*time.Millisecond)

	if res.Completed || res.Cancelled {
		t.Fatalf("result = %+v, want incomplete", res)
	}
}

func TestRunWithCancel_ReturnsError(t *testing.T) {
	want := errors.New("boom")
	res := RunWithCancel(func(ctx context.Context) error { return want }, 100*time.Millisecond, time.Second)

	if !res.Completed || res.Cancelled || !errors.Is(res.Err, want) {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunWithTimeout_Deadline(t *testing.T) {
	res := RunWithTimeout(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 30*time.Millisecond)

	if !res.Completed || !res.Cancelled {
		t.Fatalf("result = %+v, want completed after deadline", res)
	}
}

func TestContextCancelledAtCleanup(t *testing.T) {
	var ctx context.Context
	t.Run("inner", func(t *testing.T) {
		ctx = Context(t)
		if ctx.Err() != nil {
			t.Fatalf("context already done: %v", ctx.Err())
		}
	})
	if ctx.Err() == nil {
		t.Fatal("context should be cancelled after the subtest finished")
	}
}

func TestWaitForCondition(t *testing.T) {
	n := 0
	if !WaitForCondition(func() bool { n++; return n >= 3 }, 5*time.Millisecond, time.Second) {
		t.Fatal("condition should have become true")
	}
	if WaitForCondition(func() bool { return false }, 5*time.Millisecond, 30*time.Millisecond) {
		t.Fatal("condition should have timed out")
	}
}
