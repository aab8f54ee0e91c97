package db

import (
	"context"
	"errors"
	"testing"
)

func TestRetryTransient_RetriesOnceOnTransient(t *testing.T) {
	transient := errors.Join(ErrTransient, errors.New("connection reset"))
	calls := 0
	err := RetryTransient(context.Background(), func() error {
		calls++
		if calls == 1 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryTransient: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls)
	}
}

func TestRetryTransient_SingleRetryThenSurfaces(t *testing.T) {
	transient := errors.Join(ErrTransient, errors.New("timeout"))
	calls := 0
	err := RetryTransient(context.Background(), func() error {
		calls++
		return transient
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("want ErrTransient, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (retry exhausted after one attempt)", calls)
	}
}

func TestRetryTransient_PermanentErrorNotRetried(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := RetryTransient(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for non-transient errors)", calls)
	}
}
