package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to
	// start. If zero or negative, defaults to 10.
	WorkerCount int

	// DequeueWait is how long a worker blocks on an empty queue before
	// re-checking the shutdown signal.
	DequeueWait time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 10,
		DequeueWait: 500 * time.Millisecond,
	}
}

// dependencyBackoff is the pause after re-enqueueing a dependency-stalled
// task, so workers do not spin when only blocked tasks are queued.
const dependencyBackoff = 50 * time.Millisecond

// systemErrorBackoff is the pause after a recovered panic in the
// dequeue/process loop before the worker resumes.
const systemErrorBackoff = time.Second

// WorkerPool runs a fixed set of workers that pull tasks from the
// queue, resolve their handlers, and classify the outcome. Handler
// errors and panics are fully contained per task; they never affect
// other tasks or workers.
//
// Task timeouts are soft: the handler context carries the budget as a
// deadline and the worker classifies an overrun attempt as a transient
// failure after the handler returns, but a running handler is never
// forcibly preempted.
type WorkerPool struct {
	queue     *Queue
	registry  *HandlerRegistry
	store     *StatusStore
	scheduler *RetryScheduler
	config    WorkerPoolConfig
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a worker pool over the given queue, registry,
// store, and retry scheduler.
func NewWorkerPool(
	queue *Queue,
	registry *HandlerRegistry,
	store *StatusStore,
	scheduler *RetryScheduler,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerPoolConfig().WorkerCount
	}
	if config.DequeueWait <= 0 {
		config.DequeueWait = DefaultWorkerPoolConfig().DequeueWait
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:     queue,
		registry:  registry,
		store:     store,
		scheduler: scheduler,
		config:    config,
		logger:    logger.With("component", "worker_pool"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.config.WorkerCount)
}

// Stop signals all workers to shut down and waits for in-flight tasks
// to finish. Shutdown is cooperative only; running handlers are allowed
// to complete.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is the main loop for a single worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("stopping worker")
			return
		default:
		}

		t, err := p.queue.Dequeue(p.config.DequeueWait)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				logger.Debug("queue closed, stopping worker")
				return
			}
			// Timed out on an empty queue; loop to observe shutdown.
			continue
		}

		p.runGuarded(t, logger)
	}
}

// runGuarded executes one task with a panic boundary around the whole
// process step. A panic here is a system error: it is logged, the
// worker sleeps briefly, and the loop resumes.
func (p *WorkerPool) runGuarded(t *Task, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in task processing loop",
				"task_id", t.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			time.Sleep(systemErrorBackoff)
		}
	}()
	p.process(t, logger)
}

// process handles execution of a single dequeued task.
func (p *WorkerPool) process(t *Task, logger *slog.Logger) {
	logger = logger.With("task_id", t.ID, "task_type", t.Type)

	// A task with unmet dependencies is not runnable yet. Re-enqueue it
	// unchanged; a dependency stall is not a failure and does not touch
	// the retry count. CreatedAt is preserved so it keeps its FIFO slot
	// within its priority band.
	if !p.dependenciesMet(t) {
		logger.Debug("dependencies unmet, re-enqueueing task")
		if err := p.queue.Enqueue(t); err != nil {
			// A full queue does not make the stall a failure; give the
			// queue a moment to drain and try once more before spending
			// a retry on it.
			time.Sleep(dependencyBackoff)
			if err = p.queue.Enqueue(t); err != nil {
				t.Status = StatusFailedTransient
				p.store.Put(t)
				p.scheduler.HandleFailure(t, fmt.Errorf("re-enqueue after dependency stall: %w", err))
			}
			return
		}
		time.Sleep(dependencyBackoff)
		return
	}

	now := time.Now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &now
	p.store.Put(t)

	logger.Info("processing task", "priority", t.Priority, "retry_count", t.RetryCount)

	handler, ok := p.registry.Resolve(t.Type)
	if !ok {
		// Retrying cannot help an unregistered type; fail permanently
		// right away with a distinct marker.
		p.finalizeUnknownType(t, logger)
		return
	}

	result, err := p.invoke(handler, t)

	elapsed := time.Since(now)
	if err == nil && t.Timeout > 0 && elapsed > t.Timeout {
		err = fmt.Errorf("%w: ran %s of %s budget", ErrTaskTimeout, elapsed.Round(time.Millisecond), t.Timeout)
	}

	if err != nil {
		logger.Warn("task attempt failed", "error", err, "elapsed", elapsed)
		t.Status = StatusFailedTransient
		t.Error = err.Error()
		p.store.Put(t)
		p.scheduler.HandleFailure(t, err)
		return
	}

	completed := time.Now().UTC()
	t.Status = StatusCompleted
	t.Result = result
	t.Error = ""
	t.CompletedAt = &completed
	p.store.Put(t)

	logger.Info("task completed", "elapsed", elapsed)
}

// invoke calls the handler with the task's soft timeout attached to the
// context, converting a handler panic into an error so a misbehaving
// handler cannot take down its worker.
func (p *WorkerPool) invoke(handler Handler, t *Task) (result map[string]any, err error) {
	// In-flight tasks run to completion even during shutdown, so the
	// handler context is not derived from the pool context.
	ctx := context.Background()
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked",
				"task_id", t.ID,
				"task_type", t.Type,
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, t.Payload)
}

// finalizeUnknownType records the terminal failure for a task whose
// type has no handler.
func (p *WorkerPool) finalizeUnknownType(t *Task, logger *slog.Logger) {
	now := time.Now().UTC()
	t.Status = StatusFailedPermanent
	t.Error = fmt.Sprintf("%s: %q", ErrUnknownTaskType.Error(), t.Type)
	t.Result = nil
	t.CompletedAt = &now
	p.store.Put(t)
	logger.Error("no handler registered for task type")
}

// dependenciesMet reports whether every dependency has completed.
func (p *WorkerPool) dependenciesMet(t *Task) bool {
	for _, dep := range t.Dependencies {
		rec, ok := p.store.Get(dep)
		if !ok || rec.Status != StatusCompleted {
			return false
		}
	}
	return true
}
