package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EngineConfig collects the externally configurable engine tunables.
type EngineConfig struct {
	// WorkerCount is the size of the worker pool.
	WorkerCount int

	// QueueCapacity bounds the priority queue. Producers get
	// ErrQueueFull past this point.
	QueueCapacity int

	// DequeueWait is the worker blocking-dequeue timeout.
	DequeueWait time.Duration

	// BaseRetryDelay and MaxRetryDelay parameterize retry backoff.
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration

	// DefaultMaxRetries applies to tasks submitted without an explicit
	// retry budget.
	DefaultMaxRetries int

	// DefaultTimeout applies to tasks submitted without an explicit
	// soft timeout budget.
	DefaultTimeout time.Duration

	// HousekeepingInterval is how often terminal records are swept
	// from the status store.
	HousekeepingInterval time.Duration

	// RetentionWindow is how long terminal records remain queryable.
	RetentionWindow time.Duration
}

// DefaultEngineConfig returns an EngineConfig with the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WorkerCount:          10,
		QueueCapacity:        1000,
		DequeueWait:          500 * time.Millisecond,
		BaseRetryDelay:       60 * time.Second,
		MaxRetryDelay:        300 * time.Second,
		DefaultMaxRetries:    3,
		DefaultTimeout:       300 * time.Second,
		HousekeepingInterval: 5 * time.Minute,
		RetentionWindow:      24 * time.Hour,
	}
}

// Stats is a point-in-time snapshot of engine state.
type Stats struct {
	Queued   int            `json:"queued"`
	Records  int            `json:"records"`
	ByStatus map[Status]int `json:"by_status"`
}

// Engine owns the task processing components: the priority queue, the
// handler registry, the status store, the retry scheduler, and the
// worker pool. It is constructed once at process startup and passed
// explicitly to producers; there is no package-level singleton.
type Engine struct {
	config    EngineConfig
	queue     *Queue
	registry  *HandlerRegistry
	store     *StatusStore
	scheduler *RetryScheduler
	pool      *WorkerPool
	logger    *slog.Logger

	mu      sync.Mutex
	started bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine wires up an engine from the given configuration. Handlers
// are registered through Registry() before Start.
func NewEngine(config EngineConfig, logger *slog.Logger) *Engine {
	defaults := DefaultEngineConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = defaults.QueueCapacity
	}
	if config.DequeueWait <= 0 {
		config.DequeueWait = defaults.DequeueWait
	}
	if config.BaseRetryDelay <= 0 {
		config.BaseRetryDelay = defaults.BaseRetryDelay
	}
	if config.MaxRetryDelay <= 0 {
		config.MaxRetryDelay = defaults.MaxRetryDelay
	}
	if config.DefaultMaxRetries <= 0 {
		config.DefaultMaxRetries = defaults.DefaultMaxRetries
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.HousekeepingInterval <= 0 {
		config.HousekeepingInterval = defaults.HousekeepingInterval
	}
	if config.RetentionWindow <= 0 {
		config.RetentionWindow = defaults.RetentionWindow
	}

	queue := NewQueue(config.QueueCapacity, logger)
	registry := NewHandlerRegistry()
	store := NewStatusStore(logger)
	scheduler := NewRetryScheduler(queue, store, BackoffConfig{
		BaseDelay: config.BaseRetryDelay,
		MaxDelay:  config.MaxRetryDelay,
	}, logger)
	pool := NewWorkerPool(queue, registry, store, scheduler, WorkerPoolConfig{
		WorkerCount: config.WorkerCount,
		DequeueWait: config.DequeueWait,
	}, logger)

	return &Engine{
		config:    config,
		queue:     queue,
		registry:  registry,
		store:     store,
		scheduler: scheduler,
		pool:      pool,
		logger:    logger.With("component", "engine"),
	}
}

// Registry exposes the handler registry for startup registration.
func (e *Engine) Registry() *HandlerRegistry { return e.registry }

// Store exposes the status store for task status queries.
func (e *Engine) Store() *StatusStore { return e.store }

// Config returns the effective engine configuration.
func (e *Engine) Config() EngineConfig { return e.config }

// Submit applies engine defaults to the task, records it as pending,
// and enqueues it. Returns ErrQueueFull when the queue rejects it; in
// that case no record is kept.
func (e *Engine) Submit(t *Task) error {
	if t.MaxRetries <= 0 {
		t.MaxRetries = e.config.DefaultMaxRetries
	}
	if t.Timeout <= 0 {
		t.Timeout = e.config.DefaultTimeout
	}
	t.Status = StatusPending

	// Record first: once the task is enqueued a worker may take it and
	// start mutating it, so the pending snapshot must be taken before
	// the queue can hand the pointer to anyone else.
	e.store.Put(t)
	if err := e.queue.Enqueue(t); err != nil {
		e.store.Delete(t.ID)
		return fmt.Errorf("submit task %s: %w", t.ID, err)
	}
	return nil
}

// Start freezes the handler registry, launches the worker pool, and
// starts the housekeeping sweep. It is an error to start twice.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrEngineStarted
	}
	e.started = true

	e.registry.Freeze()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.pool.Start()

	e.wg.Add(1)
	go e.housekeeping(ctx)

	e.logger.Info("engine started",
		"worker_count", e.config.WorkerCount,
		"queue_capacity", e.config.QueueCapacity,
		"handler_types", e.registry.Types())
	return nil
}

// Stop shuts the engine down cooperatively: the housekeeping loop and
// pending retry timers are cancelled, workers finish their in-flight
// tasks, and the queue is closed.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	e.cancel()
	e.scheduler.Stop()
	e.pool.Stop()
	e.queue.Close()
	e.wg.Wait()

	e.logger.Info("engine stopped")
}

// Stats returns a snapshot of queue depth and status-store contents.
func (e *Engine) Stats() Stats {
	return Stats{
		Queued:   e.queue.Len(),
		Records:  e.store.Len(),
		ByStatus: e.store.Counts(),
	}
}

// housekeeping periodically evicts terminal records past the retention
// window.
func (e *Engine) housekeeping(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.store.Sweep(e.config.RetentionWindow)
		}
	}
}
