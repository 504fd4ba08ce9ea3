package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/dispatch"
)

// StartQueue runs a dispatch queue until the test ends.
func StartQueue(t testing.TB) *dispatch.Queue {
	t.Helper()

	q := dispatch.NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-q.Done()
	})
	return q
}

// Eventually polls cond on q until it holds or timeout elapses.
func Eventually(t testing.TB, q *dispatch.Queue, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		var ok bool
		q.Sync(func() { ok = cond() })
		if ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
