package task

import "errors"

// Common errors returned by the engine
var (
	// ErrQueueClosed is returned when enqueueing to or dequeueing from
	// a queue that has been closed for shutdown.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrQueueFull is returned when the queue is at capacity. The
	// backpressure policy is reject-with-error, not block.
	ErrQueueFull = errors.New("task queue is full")

	// ErrDequeueTimeout is returned when a blocking dequeue observes an
	// empty queue for the full wait duration.
	ErrDequeueTimeout = errors.New("dequeue timed out")

	// ErrUnknownTaskType marks the permanent failure recorded for a
	// task whose type has no registered handler.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrRegistryFrozen is returned when registering a handler after
	// the registry has been frozen at engine start.
	ErrRegistryFrozen = errors.New("handler registry is frozen")

	// ErrHandlerExists is returned when registering a duplicate task type.
	ErrHandlerExists = errors.New("handler already registered for task type")

	// ErrTaskTimeout marks a transient failure caused by an attempt
	// exceeding the task's soft timeout budget.
	ErrTaskTimeout = errors.New("task exceeded timeout budget")

	// ErrEngineStarted is returned by operations that are only valid
	// before Start, such as handler registration through the engine.
	ErrEngineStarted = errors.New("engine already started")
)
