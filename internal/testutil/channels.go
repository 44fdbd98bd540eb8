// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second
)

// Receive returns the next value from ch or fails the test after timeout.
// A closed channel also fails the test.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "%s: channel closed", msg)
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}

// WaitForClose waits until ch is closed, discarding any values still queued.
func WaitForClose[T any](t testing.TB, ch <-chan T, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNow(t, msg)
		}
	}
}

// RunAsync runs fn on its own goroutine and returns a function that waits for
// its result, failing the test if fn does not return within timeout.
func RunAsync(t testing.TB, timeout time.Duration, fn func() error) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return func() error {
		t.Helper()
		return Receive(t, done, timeout, "background task did not finish")
	}
}
