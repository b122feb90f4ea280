package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// acquireLock takes a named lock with bounded retries. Contention past the
// retry budget surfaces ErrUnavailable.
func acquireLock(ctx context.Context, locks domain.LockManager, key string, ttl time.Duration, retries int, delay time.Duration) (func(), error) {
	attempts := retries + 1
	for i := 0; i < attempts; i++ {
		unlock, err := locks.Acquire(ctx, key, ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("service: acquire lock %s: %w", key, err)
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("service: lock %s contended after %d attempts: %w",
		key, attempts, domain.ErrUnavailable)
}
