// Package dispatch provides the single logical task queue the feed engine runs on.
//
// All engine state (pagination, item list, image cache, in-flight requests) is
// owned by tasks executed on one Queue. Network and decode work runs in its own
// goroutines and posts its completion back with Post, so no engine state is
// ever touched by two goroutines.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned when Run is called on a queue that is already running.
var ErrAlreadyRunning = errors.New("queue already running")

// Queue is an unbounded FIFO of tasks executed one at a time by Run.
type Queue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
	stopped bool

	wake chan struct{}
	done chan struct{}

	logger zerolog.Logger
}

// NewQueue creates an idle queue. Tasks posted before Run are kept.
func NewQueue() *Queue {
	return &Queue{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logging.NewLogger("dispatch"),
	}
}

// Post enqueues fn. It is safe to call from any goroutine and never blocks.
// It returns false when the queue has stopped and fn was dropped.
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.logger.Debug().Msg("Task dropped, queue stopped")
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync posts fn and waits until it has run. It must not be called from a task
// on the same queue. It returns false if the queue stopped before fn ran.
func (q *Queue) Sync(fn func()) bool {
	ran := make(chan struct{})
	if !q.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}

	select {
	case <-ran:
		return true
	case <-q.done:
		// The task may have run just before the queue stopped.
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Run executes tasks until ctx is done. Pending tasks are dropped on exit and
// later posts are rejected.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running || q.stopped {
		q.mu.Unlock()
		return ErrAlreadyRunning
	}
	q.running = true
	q.mu.Unlock()

	defer q.stop()

	for {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn := q.next()
			if fn == nil {
				break
			}
			q.exec(fn)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Done is closed once Run has returned.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) next() func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	fn := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return fn
}

// exec runs one task. A panicking task is logged and does not stop the queue.
func (q *Queue) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Msg("Task panicked")
		}
	}()
	fn()
}

func (q *Queue) stop() {
	q.mu.Lock()
	dropped := len(q.tasks)
	q.stopped = true
	q.tasks = nil
	q.mu.Unlock()

	close(q.done)

	if dropped > 0 {
		q.logger.Debug().Int("dropped", dropped).Msg("Queue stopped with pending tasks")
	}
}
