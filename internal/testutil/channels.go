// Package testutil holds helpers shared by the review core tests: timeouts,
// channel waits and a seeded in-memory store.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	// DefaultTestTimeout bounds waits on background work such as queue
	// workers and app shutdown.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout bounds stops of components that are already idle.
	ShortTestTimeout = 1 * time.Second

	// PollInterval is the tick used with require.Eventually.
	PollInterval = 10 * time.Millisecond
)

// WaitForChannel returns the next value received from ch, failing the test
// with msg when nothing arrives within timeout.
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}
