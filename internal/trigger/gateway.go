package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/davidhaber/taskengine/internal/task"
	"github.com/google/uuid"
)

// Errors surfaced synchronously to trigger callers. None of them
// produce a task and none are retried.
var (
	// ErrTriggerNotFound is returned for unknown or inactive triggers.
	ErrTriggerNotFound = errors.New("trigger not found or inactive")

	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrTriggerExists is returned when registering a duplicate name.
	ErrTriggerExists = errors.New("trigger already registered")
)

// TaskSubmitter is the slice of the engine the gateway needs: accept a
// built task for queueing.
type TaskSubmitter interface {
	Submit(t *task.Task) error
}

// Defaults applied to gateway-produced tasks.
type TaskDefaults struct {
	Priority   task.Priority
	MaxRetries int
	Timeout    time.Duration
}

// DefaultTaskDefaults returns the defaults for webhook-triggered tasks.
func DefaultTaskDefaults() TaskDefaults {
	return TaskDefaults{
		Priority:   task.PriorityHigh,
		MaxRetries: 3,
		Timeout:    300 * time.Second,
	}
}

// Result is the synchronous response to a successful trigger invocation.
type Result struct {
	Status    string    `json:"status"`
	TriggerID uuid.UUID `json:"trigger_id"`
	TaskID    uuid.UUID `json:"task_id"`
}

// Gateway validates trigger invocations and converts them into tasks.
// Definition statistics are the only runtime mutation and are guarded
// by a single mutex; writes are infrequent.
type Gateway struct {
	mu        sync.Mutex
	defs      map[string]*Trigger
	submitter TaskSubmitter
	defaults  TaskDefaults
	logger    *slog.Logger
}

// NewGateway creates a gateway submitting tasks to the given submitter.
func NewGateway(submitter TaskSubmitter, defaults TaskDefaults, logger *slog.Logger) *Gateway {
	if defaults.Priority == 0 {
		defaults = DefaultTaskDefaults()
	}
	return &Gateway{
		defs:      make(map[string]*Trigger),
		submitter: submitter,
		defaults:  defaults,
		logger:    logger.With("component", "trigger_gateway"),
	}
}

// Register adds a trigger definition. Definitions are registered at
// startup configuration time and never deleted at runtime.
func (g *Gateway) Register(t *Trigger) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.defs[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrTriggerExists, t.Name)
	}
	g.defs[t.Name] = t
	return nil
}

// TaskTypes returns every task type mapped by a registered trigger, for
// startup fail-fast validation against the handler registry.
func (g *Gateway) TaskTypes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	types := make([]string, 0, len(g.defs))
	for _, t := range g.defs {
		types = append(types, t.TaskTypeMapping)
	}
	sort.Strings(types)
	return types
}

// Triggers returns copies of all registered definitions.
func (g *Gateway) Triggers() []*Trigger {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Trigger, 0, len(g.defs))
	for _, t := range g.defs {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandleTrigger resolves the named trigger, validates the payload
// against its required fields, builds a task, and enqueues it. On any
// validation failure no task is created.
func (g *Gateway) HandleTrigger(ctx context.Context, name string, payload map[string]any) (*Result, error) {
	g.mu.Lock()
	def, ok := g.defs[name]
	if !ok || !def.IsActive {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrTriggerNotFound, name)
	}
	taskType := def.TaskTypeMapping
	missing := def.MissingFields(payload)
	g.mu.Unlock()

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %q", ErrMissingField, missing[0])
	}

	t := g.buildTask(taskType, payload, task.SourceAPIWebhook, g.defaults.Priority)
	if err := g.submitter.Submit(t); err != nil {
		return nil, fmt.Errorf("trigger %q: %w", name, err)
	}

	now := time.Now().UTC()
	g.mu.Lock()
	def.TriggerCount++
	def.LastTriggered = &now
	triggerID := def.ID
	g.mu.Unlock()

	g.logger.Info("trigger fired",
		"trigger", name,
		"task_id", t.ID,
		"task_type", taskType)

	return &Result{Status: "success", TriggerID: triggerID, TaskID: t.ID}, nil
}

// Emit builds and submits a task outside the named-trigger path, used
// by the monitoring engine so rule-produced tasks flow through the same
// defaults and submission as webhook-produced ones.
func (g *Gateway) Emit(ctx context.Context, taskType string, payload map[string]any, source task.Source) (*task.Task, error) {
	t := g.buildTask(taskType, payload, source, g.defaults.Priority)
	if err := g.submitter.Submit(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (g *Gateway) buildTask(taskType string, payload map[string]any, source task.Source, priority task.Priority) *task.Task {
	t := task.New(taskType, payload)
	t.Source = source
	t.Priority = priority
	t.MaxRetries = g.defaults.MaxRetries
	t.Timeout = g.defaults.Timeout
	return t
}
