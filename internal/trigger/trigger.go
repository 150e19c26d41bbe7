// Package trigger converts validated external trigger invocations into
// tasks on the engine queue. Trigger definitions are registered at
// startup and only their statistics fields change at runtime.
package trigger

import (
	"time"

	"github.com/google/uuid"
)

// Field requirement markers used in Trigger.RequiredFields.
const (
	FieldRequired = "required"
	FieldOptional = "optional"
)

// Trigger defines an external event that produces a task when invoked
// with a valid payload.
type Trigger struct {
	// ID identifies the definition.
	ID uuid.UUID `json:"id"`

	// Name is the unique invocation name.
	Name string `json:"name"`

	// RequiredFields maps payload field names to FieldRequired or
	// FieldOptional. Invocations missing a required field are rejected.
	RequiredFields map[string]string `json:"required_fields"`

	// TaskTypeMapping is the task type emitted on invocation.
	TaskTypeMapping string `json:"task_type_mapping"`

	// IsActive gates invocation; inactive triggers reject with the
	// same error as unknown ones.
	IsActive bool `json:"is_active"`

	// LastTriggered and TriggerCount are aggregate invocation stats,
	// updated under the gateway lock.
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	TriggerCount  int64      `json:"trigger_count"`
}

// New creates an active trigger definition.
func New(name, taskType string, requiredFields map[string]string) *Trigger {
	if requiredFields == nil {
		requiredFields = make(map[string]string)
	}
	return &Trigger{
		ID:              uuid.New(),
		Name:            name,
		RequiredFields:  requiredFields,
		TaskTypeMapping: taskType,
		IsActive:        true,
	}
}

// MissingFields returns the required field names absent from the payload.
func (t *Trigger) MissingFields(payload map[string]any) []string {
	var missing []string
	for field, requirement := range t.RequiredFields {
		if requirement != FieldRequired {
			continue
		}
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}
