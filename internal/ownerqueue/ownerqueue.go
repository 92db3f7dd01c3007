// Package ownerqueue fans incoming jobs out to one worker goroutine per
// owner: jobs for the same owner run in arrival order, different owners run
// concurrently.
package ownerqueue

import (
	"context"
	"sync"
)

type Queue[J any] struct {
	ctx    context.Context
	buffer int
	handle func(ctx context.Context, owner int64, job J)

	mu    sync.Mutex
	lanes map[int64]chan J
	wg    sync.WaitGroup
}

func New[J any](ctx context.Context, buffer int, handle func(ctx context.Context, owner int64, job J)) *Queue[J] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Queue[J]{
		ctx:    ctx,
		buffer: buffer,
		handle: handle,
		lanes:  make(map[int64]chan J),
	}
}

// Enqueue hands a job to the owner's lane, starting it on first use. Blocks
// when the lane is full; returns the context error once the queue is shut
// down.
func (q *Queue[J]) Enqueue(owner int64, job J) error {
	if err := q.ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	lane, ok := q.lanes[owner]
	if !ok {
		lane = make(chan J, q.buffer)
		q.lanes[owner] = lane
		q.wg.Add(1)
		go q.drain(owner, lane)
	}
	q.mu.Unlock()

	select {
	case <-q.ctx.Done():
		return q.ctx.Err()
	case lane <- job:
		return nil
	}
}

func (q *Queue[J]) drain(owner int64, lane <-chan J) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-lane:
			q.handle(q.ctx, owner, job)
		}
	}
}

// Wait blocks until all lanes have observed context cancellation.
func (q *Queue[J]) Wait() {
	q.wg.Wait()
}
