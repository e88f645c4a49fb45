package utils

import (
	"context"
	"errors"
	"testing"
)

func TestNavigationRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := NavigationRetry(context.Background(), NewNopLogger(), "first-try", func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("err = %v, calls = %d; want nil, 1", err, calls)
	}
}

func TestNavigationRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := NavigationRetry(ctx, NewNopLogger(), "cancelled", func() error {
		calls++
		cancel()
		return errors.New("nav failed")
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d; cancellation must stop further attempts", calls)
	}
}
