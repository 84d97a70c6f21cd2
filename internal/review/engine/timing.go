package engine

import (
	"context"
	"time"
)

// Clock supplies the current time.
type Clock func() time.Time

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// attemptDelay returns the minimum time since submission before attempt
// may run. Attempts past the configured list reuse the last delay.
func (e *Engine) attemptDelay(attempt int) time.Duration {
	delays := e.cfg.AttemptDelays
	if len(delays) == 0 || attempt < 1 {
		return 0
	}
	if attempt > len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt-1]
}

// waitForAttempt holds the attempt until the platform has had time to
// publish the content. It returns how long it waited.
func (e *Engine) waitForAttempt(ctx context.Context, submittedAt time.Time, attempt int) (time.Duration, error) {
	readyAt := submittedAt.Add(e.attemptDelay(attempt))
	wait := readyAt.Sub(e.now())
	if wait <= 0 {
		return 0, nil
	}
	return wait, e.sleep(ctx, wait)
}
