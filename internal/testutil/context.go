// Package testutil provides shared helpers for flowverify tests: bounded
// contexts, an isolated project harness and an in-memory portal driver.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

// DefaultTimeout bounds helpers that take no explicit timeout.
const DefaultTimeout = 10 * time.Second

// RunResult holds the result of running a function under a deadline.
type RunResult struct {
	// Err is the error returned by the function (may be nil).
	Err error
	// Cancelled is true if Err is a context cancellation or deadline.
	Cancelled bool
	// Completed is true if the function returned before the deadline plus grace.
	Completed bool
	// Duration is how long the function ran.
	Duration time.Duration
}

// RunWithCancel runs fn, cancels its context after cancelAfter and waits up
// to timeout for it to return.
//
// Example:
//
//	res := testutil.RunWithCancel(func(ctx context.Context) error {
//	    _, err := runner.Run(ctx, sc, meta)
//	    return err
//	}, 50*time.Millisecond, time.Second)
func RunWithCancel(fn func(context.Context) error, cancelAfter, timeout time.Duration) RunResult {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(cancelAfter, cancel)
	return wait(ctx, fn, timeout)
}

// RunWithTimeout runs fn with a context that expires after timeout.
func RunWithTimeout(fn func(context.Context) error, timeout time.Duration) RunResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return wait(ctx, fn, timeout+100*time.Millisecond)
}

func wait(ctx context.Context, fn func(context.Context) error, limit time.Duration) RunResult {
	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(ctx)
	}()

	select {
	case err := <-errCh:
		return RunResult{
			Err:       err,
			Cancelled: errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded),
			Completed: true,
			Duration:  time.Since(start),
		}
	case <-time.After(limit):
		return RunResult{Duration: time.Since(start)}
	}
}

// Context returns a context cancelled at test cleanup or after DefaultTimeout.
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// WaitForCondition polls condition until it returns true or timeout elapses.
func WaitForCondition(condition func() bool, pollInterval, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(pollInterval)
	}
	return condition()
}
