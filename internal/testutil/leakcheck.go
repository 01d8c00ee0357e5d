package testutil

import (
	"testing"

	"go.uber.org/goleak"
)

// VerifyNoLeaks fails t at cleanup if goroutines started by the test are
// still running.
func VerifyNoLeaks(t testing.TB, opts ...goleak.Option) {
	t.Helper()
	opts = append(opts,
		goleak.IgnoreCurrent(),
		// http keep-alive connections from httptest clients
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
	t.Cleanup(func() {
		goleak.VerifyNone(t, opts...)
	})
}
