package task

import (
	"fmt"
	"sort"
	"sync"
)

// HandlerRegistry maps task-type identifiers to their handlers. All
// registration happens during startup; Freeze is called before the
// worker pool starts, after which the map is read-only and lookups
// need no locking.
type HandlerRegistry struct {
	mu       sync.Mutex
	handlers map[string]Handler
	frozen   bool
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a task type. It fails on duplicate types
// and after the registry has been frozen.
func (r *HandlerRegistry) Register(taskType string, h Handler) error {
	if taskType == "" {
		return fmt.Errorf("task type cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %q cannot be nil", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, taskType)
	}
	if _, ok := r.handlers[taskType]; ok {
		return fmt.Errorf("%w: %q", ErrHandlerExists, taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// Freeze makes the registry immutable. Called by the engine before the
// worker pool starts.
func (r *HandlerRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Resolve returns the handler for a task type. After Freeze this is a
// plain map read.
func (r *HandlerRegistry) Resolve(taskType string) (Handler, bool) {
	h, ok := r.handlers[taskType]
	return h, ok
}

// Validate checks that every given task type has a registered handler,
// so misconfigured trigger and rule mappings fail at startup instead of
// at dispatch time.
func (r *HandlerRegistry) Validate(taskTypes ...string) error {
	for _, t := range taskTypes {
		if _, ok := r.handlers[t]; !ok {
			return fmt.Errorf("%w: %q has no registered handler", ErrUnknownTaskType, t)
		}
	}
	return nil
}

// Types returns the registered task types in sorted order.
func (r *HandlerRegistry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
