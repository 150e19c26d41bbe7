package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task in its lifecycle.
type Status string

// Possible task status values
const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusFailedTransient Status = "failed_transient"
	StatusRetrying        Status = "retrying"
	StatusFailedPermanent Status = "failed_permanent"
)

// IsTerminal reports whether the status is a terminal state from which
// the task will never be scheduled again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailedPermanent
}

// Priority orders tasks for dispatch. Higher values are dequeued first.
type Priority int

// Priority levels, in ascending order of urgency.
const (
	PriorityLow       Priority = 1
	PriorityMedium    Priority = 3
	PriorityHigh      Priority = 5
	PriorityCritical  Priority = 8
	PriorityEmergency Priority = 10
)

// Source identifies what produced a task.
type Source string

// Possible task sources
const (
	SourceUserInteraction  Source = "user_interaction"
	SourceSystemEvent      Source = "system_event"
	SourceAPIWebhook       Source = "api_webhook"
	SourceScheduledTask    Source = "scheduled_task"
	SourcePatternDetection Source = "pattern_detection"
	SourceThresholdBreach  Source = "threshold_breach"
	SourceExternalAPI      Source = "external_api"
)

// Handler is the function invoked by a worker to process a task of a
// given type. It receives the task payload and returns a result map or
// an error. The context carries the task's soft timeout as a deadline;
// handlers should treat it as advisory guidance and not block past it.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Task represents a unit of schedulable background work with priority,
// payload, and retry state.
type Task struct {
	// ID is the task's unique identifier, assigned at creation.
	ID uuid.UUID `json:"id"`

	// Type selects the handler that processes this task.
	Type string `json:"type"`

	// Priority determines dispatch order; higher runs first.
	Priority Priority `json:"priority"`

	// Source records what produced the task.
	Source Source `json:"source"`

	// Payload is the opaque data passed to the handler.
	Payload map[string]any `json:"payload,omitempty"`

	// Dependencies lists task IDs that must reach StatusCompleted
	// before this task may run.
	Dependencies []uuid.UUID `json:"dependencies,omitempty"`

	// RetryCount is the number of retries attempted so far. It never
	// exceeds MaxRetries.
	RetryCount int `json:"retry_count"`

	// MaxRetries bounds how many times a transiently failed task is
	// re-enqueued before failing permanently.
	MaxRetries int `json:"max_retries"`

	// Timeout is the soft execution-time budget for a single attempt.
	// Zero means no budget.
	Timeout time.Duration `json:"timeout"`

	// Status is the task's position in the state machine.
	Status Status `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result holds the handler's output once the task completes.
	// Result and Error are mutually exclusive.
	Result map[string]any `json:"result,omitempty"`

	// Error holds the failure detail for terminal failures and the
	// last failure while retrying.
	Error string `json:"error,omitempty"`
}

// New creates a pending task of the given type with a fresh ID and the
// current time as CreatedAt.
func New(taskType string, payload map[string]any) *Task {
	return &Task{
		ID:        uuid.New(),
		Type:      taskType,
		Priority:  PriorityMedium,
		Source:    SourceSystemEvent,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the task. The status store keeps and
// returns clones so callers never share mutable state with workers.
func (t *Task) Clone() *Task {
	c := *t
	if t.Payload != nil {
		c.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			c.Payload[k] = v
		}
	}
	if t.Result != nil {
		c.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			c.Result[k] = v
		}
	}
	if t.Dependencies != nil {
		c.Dependencies = make([]uuid.UUID, len(t.Dependencies))
		copy(c.Dependencies, t.Dependencies)
	}
	if t.StartedAt != nil {
		s := *t.StartedAt
		c.StartedAt = &s
	}
	if t.CompletedAt != nil {
		s := *t.CompletedAt
		c.CompletedAt = &s
	}
	return &c
}
