package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryDelay is the backoff before the single internal retry of a transient
// storage failure.
const retryDelay = 100 * time.Millisecond

// RetryTransient runs op, retrying once after a short backoff when the failure
// is ErrTransient. Every other error is permanent and surfaces immediately;
// security-relevant errors must never reach a retry loop.
func RetryTransient(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), 1), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
