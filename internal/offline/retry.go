package offline

import (
	"context"
	"time"

	"github.com/NgigiN/finsync/internal/apperr"
)

// retry runs op up to attempts times, sleeping backoff before the second
// attempt and doubling it afterwards. Only transient errors are retried.
func retry(ctx context.Context, attempts int, backoff time.Duration, sleep func(context.Context, time.Duration) bool, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil || !apperr.IsTransient(err) {
			return err
		}

		if attempt == attempts || !sleep(ctx, backoff) {
			break
		}
		backoff *= 2
	}
	return err
}

// sleepBackoff waits for d and reports false if ctx ended first.
func sleepBackoff(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
