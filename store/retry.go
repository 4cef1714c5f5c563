package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync/apperr"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConflictAttempts bounds how often an optimistic write is tried
// before the conflict is surfaced to the caller.
const DefaultConflictAttempts = 3

func newConflictBackoff(attempts int) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 50 * time.Millisecond
	return backoff.WithMaxRetries(bo, uint64(attempts-1))
}

// RetryOnConflict runs op until it succeeds, fails with an error other than
// ErrVersionConflict, or has been tried attempts times. Exhausted retries
// are reported as apperr.ErrConflict.
func RetryOnConflict(ctx context.Context, attempts int, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(newConflictBackoff(attempts), ctx))

	if errors.Is(err, ErrVersionConflict) {
		return fmt.Errorf("%w: gave up after %d attempts: %v", apperr.ErrConflict, attempts, err)
	}
	return err
}
