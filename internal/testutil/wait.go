// Package testutil provides shared helpers for asynchronous tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	// DefaultTestTimeout bounds most asynchronous waits.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to finish almost at once.
	ShortTestTimeout = time.Second

	// FastPoll is the polling interval for Eventually style checks.
	FastPoll = 10 * time.Millisecond
)

// WaitForChannel waits for a signal on ch or fails after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// WaitForValue waits for one value on ch and returns it, failing after timeout.
func WaitForValue[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
	var zero T
	return zero
}

// Poll fetches a value until done reports true or DefaultTestTimeout passes,
// and returns the last value fetched.
func Poll[T any](t *testing.T, fetch func() (T, error), done func(T) bool, msg string) T {
	t.Helper()
	var last T
	require.Eventually(t, func() bool {
		v, err := fetch()
		if err != nil {
			return false
		}
		last = v
		return done(v)
	}, DefaultTestTimeout, FastPoll, msg)
	return last
}
