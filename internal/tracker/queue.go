package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueClosed is returned for tasks submitted after the queue stopped.
var ErrQueueClosed = errors.New("task queue closed")

// Task is one unit of work run by the queue consumer.
type Task func(ctx context.Context) error

type job struct {
	name string
	fn   Task
	done chan error
}

// Queue runs tasks one at a time in submission order. State touched only
// from tasks needs no further locking. A failing or panicking task is
// logged and does not affect the tasks after it.
type Queue struct {
	mu      sync.Mutex
	pending []job
	closed  bool
	wake    chan struct{}
	log     zerolog.Logger
}

// NewQueue returns an idle queue; call Run to start consuming.
func NewQueue(log zerolog.Logger) *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		log:  log,
	}
}

// Submit enqueues fn and returns a channel that receives its result.
// Submit never blocks.
func (q *Queue) Submit(name string, fn Task) <-chan error {
	done := make(chan error, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		done <- ErrQueueClosed
		return done
	}
	q.pending = append(q.pending, job{name: name, fn: fn, done: done})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return done
}

// Do enqueues fn and waits for it to finish or for ctx to end. A task
// abandoned by ctx still runs. Do must not be called from inside a task.
func (q *Queue) Do(ctx context.Context, name string, fn Task) error {
	select {
	case err := <-q.Submit(name, fn):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes tasks until ctx is done, then closes the queue and fails
// whatever is still pending with ErrQueueClosed.
func (q *Queue) Run(ctx context.Context) {
	defer q.close()
	for {
		if ctx.Err() != nil {
			return
		}
		if j, ok := q.next(); ok {
			j.done <- q.exec(ctx, j)
			continue
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) next() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return job{}, false
	}
	j := q.pending[0]
	q.pending[0] = job{}
	q.pending = q.pending[1:]
	return j, true
}

func (q *Queue) exec(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
		if err != nil {
			q.log.Error().Err(err).Str("task", j.name).Msg("background task failed")
		}
	}()
	return j.fn(ctx)
}

func (q *Queue) close() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.closed = true
	q.mu.Unlock()

	for _, j := range pending {
		j.done <- ErrQueueClosed
	}
}
