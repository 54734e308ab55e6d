package indexer

import (
	"sync"
	"time"

	"github.com/dshills/recall-mcp/pkg/types"
)

// Queue is an unbounded FIFO of embedding jobs, safe for concurrent use.
// Pop waits a bounded time for work so the batch loop never busy-waits.
type Queue struct {
	mu     sync.Mutex
	items  []types.EmbeddingJob
	closed bool

	notify   chan struct{} // capacity 1; signals "items may be available"
	closedCh chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Push appends a job. It returns false once the queue is closed.
func (q *Queue) Push(job types.EmbeddingJob) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop returns the oldest job, waiting up to wait for one to arrive. It
// returns false on timeout, or when the queue is closed and empty.
func (q *Queue) Pop(wait time.Duration) (types.EmbeddingJob, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = types.EmbeddingJob{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return job, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return types.EmbeddingJob{}, false
		}

		select {
		case <-q.notify:
		case <-q.closedCh:
		case <-timer.C:
			return types.EmbeddingJob{}, false
		}
	}
}

// Close wakes all blocked Pop calls. Further pushes are rejected.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.closedCh)
	}
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
