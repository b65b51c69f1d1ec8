package crawler

import "sync"

// taskQueue is the single frontier queue feeding the workers.
//
// It is unbounded because workers are its producers as well as its
// consumers; a push never blocks.
type taskQueue struct {
	mu    sync.Mutex
	items []Task

	// ready carries at most one wake-up. A worker that pops a task while
	// more remain passes the wake-up on.
	ready chan struct{}
}

// newTaskQueue returns an empty queue.
func newTaskQueue() *taskQueue {
	return &taskQueue{ready: make(chan struct{}, 1)}
}

// push appends t and wakes one idle worker.
func (q *taskQueue) push(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.signal()
}

// pop removes the oldest task.
func (q *taskQueue) pop() (Task, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Task{}, false
	}
	t := q.items[0]
	q.items[0] = Task{}
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()

	if more {
		q.signal()
	}
	return t, true
}

func (q *taskQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
