package session

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("session queue closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

type lane struct {
	jobs []*job
}

// Queue runs work for the same key one at a time in arrival order. Different
// keys run concurrently. A lane's goroutine exits once its backlog drains.
type Queue struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

func NewQueue() *Queue {
	return &Queue{lanes: make(map[string]*lane)}
}

// Do enqueues fn under key and blocks until it has run. If ctx ends while the
// job is still waiting, Do returns ctx.Err() and the job is skipped.
func (q *Queue) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	l, running := q.lanes[key]
	if !running {
		l = &lane{}
		q.lanes[key] = l
	}
	l.jobs = append(l.jobs, j)
	if !running {
		q.wg.Add(1)
		go q.drain(key, l)
	}
	q.mu.Unlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain(key string, l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.jobs) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		j := l.jobs[0]
		l.jobs = l.jobs[1:]
		q.mu.Unlock()

		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}
		j.done <- j.fn(j.ctx)
	}
}

// Close rejects new work and waits for queued jobs to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}
