package notify

import (
	"sync"

	"github.com/roach88/docindex/internal/ir"
)

// task is one batch of listeners to call with the record they waited for.
type task struct {
	versionID string
	listeners []*Listener
	record    ir.CanonicalRecord
}

// taskQueue is an unbounded FIFO of tasks.
//
// Enqueue never blocks, so a large batch cannot stall the engine on slow
// listeners. The dispatcher waits on the signal channel between drains.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]task, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds t to the back of the queue and returns the resulting depth.
// ok is false if the queue is closed.
func (q *taskQueue) Enqueue(t task) (depth int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return len(q.tasks), false
	}

	q.tasks = append(q.tasks, t)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return len(q.tasks), true
}

// TryDequeue removes the front task without blocking.
func (q *taskQueue) TryDequeue() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task{}, false
	}

	t := q.tasks[0]
	// Clear the slot so the backing array does not pin listeners.
	q.tasks[0] = task{}
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns a channel that signals when tasks may be available.
// It is closed once the queue is closed.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *taskQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Close stops further enqueues and wakes the dispatcher.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
