package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrFull reports a queue at capacity.
var ErrFull = errors.New("job queue is full")

// Queue is a bounded FIFO work queue with job deduplication. The same job
// key cannot sit in the queue twice, so a signer whose capture is already
// awaiting verification does not get verified concurrently by two workers.
type Queue struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ch   chan string
}

// NewQueue creates a queue holding at most max jobs.
func NewQueue(max int) *Queue {
	return &Queue{
		seen: make(map[string]struct{}),
		ch:   make(chan string, max),
	}
}

// Push enqueues a job key without blocking. A key that is already queued
// is left in place and counts as accepted. Returns ErrFull when the queue
// is at capacity; the job is dropped and the caller must surface that.
func (q *Queue) Push(key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.seen[key]; dup {
		return nil
	}
	select {
	case q.ch <- key:
		q.seen[key] = struct{}{}
		return nil
	default:
		return ErrFull
	}
}

// PushWait enqueues a job key, waiting for room when the queue is at
// capacity. A key that is already queued is left in place. Returns the
// context error if the wait is cancelled.
func (q *Queue) PushWait(ctx context.Context, key string) error {
	q.mu.Lock()
	if _, dup := q.seen[key]; dup {
		q.mu.Unlock()
		return nil
	}
	q.seen[key] = struct{}{}
	q.mu.Unlock()

	select {
	case q.ch <- key:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.seen, key)
		q.mu.Unlock()
		return ctx.Err()
	}
}

// Pop blocks until a job is available or the context is done.
func (q *Queue) Pop(ctx context.Context) (string, error) {
	select {
	case key := <-q.ch:
		q.mu.Lock()
		delete(q.seen, key)
		q.mu.Unlock()
		return key, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}
