package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	err := Classify(context.DeadlineExceeded)
	if !errors.Is(err, ErrTransient) {
		t.Error("deadline exceeded should classify as transient")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("original error should remain in the chain")
	}
}

func TestClassify_ConnectionException(t *testing.T) {
	err := Classify(&pgconn.PgError{Code: "08006"}) // connection_failure
	if !errors.Is(err, ErrTransient) {
		t.Error("connection failure should classify as transient")
	}
}

func TestClassify_ConstraintViolation(t *testing.T) {
	err := Classify(&pgconn.PgError{Code: "23505"}) // unique_violation
	if errors.Is(err, ErrTransient) {
		t.Error("unique violation must not classify as transient")
	}
}

func TestClassify_PlainError(t *testing.T) {
	orig := errors.New("boom")
	if got := Classify(orig); got != orig {
		t.Errorf("plain error should pass through, got %v", got)
	}
}
