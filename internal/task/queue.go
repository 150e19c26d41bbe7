package task

import (
	"container/heap"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Queue is a bounded, thread-safe priority queue of tasks. Dequeue
// order is strictly highest priority first; within a priority band,
// tasks come out in CreatedAt order (stable FIFO). It is safe for
// concurrent producers and consumers.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    taskHeap
	capacity int
	seq      uint64
	closed   bool
	logger   *slog.Logger
}

// NewQueue creates a queue bounded to the given capacity. A capacity
// of zero or less falls back to 1.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{
		items:    make(taskHeap, 0, capacity),
		capacity: capacity,
		logger:   logger.With("component", "task_queue"),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue inserts a task. It returns ErrQueueFull when the queue is at
// capacity and ErrQueueClosed after Close; producers are expected to
// surface the full-queue error to their caller rather than block.
func (q *Queue) Enqueue(t *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.items.Len() >= q.capacity {
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, q.capacity)
	}

	q.seq++
	heap.Push(&q.items, &queuedTask{task: t, seq: q.seq})
	// A single wakeup suffices: a woken waiter re-checks the queue length
	// before its own deadline, so even one past its deadline will pop the
	// item rather than time out.
	q.notEmpty.Signal()

	q.logger.Debug("task enqueued",
		"task_id", t.ID,
		"task_type", t.Type,
		"priority", t.Priority,
		"queue_len", q.items.Len(),
		"queue_cap", q.capacity)
	return nil
}

// Dequeue removes and returns the highest-priority task, blocking up to
// wait when the queue is empty. It returns ErrDequeueTimeout if no task
// arrives in time, and ErrQueueClosed once the queue is closed and
// drained.
func (q *Queue) Dequeue(wait time.Duration) (*Task, error) {
	deadline := time.Now().Add(wait)

	// Cond has no timed wait; a timer broadcast wakes all waiters so
	// each can re-check its own deadline.
	timer := time.AfterFunc(wait, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		if !time.Now().Before(deadline) {
			return nil, ErrDequeueTimeout
		}
		q.notEmpty.Wait()
	}

	qt := heap.Pop(&q.items).(*queuedTask)
	return qt.task, nil
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close marks the queue closed and wakes all blocked consumers.
// Already-queued tasks remain dequeueable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.notEmpty.Broadcast()
		q.logger.Info("task queue closed", "remaining", q.items.Len())
	}
}

// queuedTask pairs a task with an insertion sequence number so that
// tasks sharing a priority and creation instant still dequeue in
// insertion order.
type queuedTask struct {
	task *Task
	seq  uint64
}

type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
		return a.task.CreatedAt.Before(b.task.CreatedAt)
	}
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*queuedTask)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	qt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return qt
}
