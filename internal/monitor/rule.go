// Package monitor periodically evaluates threshold rules against live
// metrics and emits tasks through the trigger gateway when a rule fires.
package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Comparison operators supported by rules.
const (
	OpGreater  = ">"
	OpLess     = "<"
	OpEqual    = "=="
	OpNotEqual = "!="
)

// Rule is a periodically evaluated condition over a metric that
// produces a task when satisfied. Created at startup; only LastChecked
// and TriggerCount change at runtime, under the engine's lock.
type Rule struct {
	ID uuid.UUID `json:"id"`

	// Name describes the rule.
	Name string `json:"name"`

	// MonitoringTarget is the metric identifier handed to the metric
	// source.
	MonitoringTarget string `json:"monitoring_target"`

	// ThresholdValue is compared against the metric value.
	ThresholdValue float64 `json:"threshold_value"`

	// ComparisonOperator is one of >, <, ==, !=.
	ComparisonOperator string `json:"comparison_operator"`

	// ActionOnTrigger is the task type emitted when the rule fires.
	ActionOnTrigger string `json:"action_on_trigger"`

	// IsActive gates evaluation.
	IsActive bool `json:"is_active"`

	LastChecked  *time.Time `json:"last_checked,omitempty"`
	TriggerCount int64      `json:"trigger_count"`
}

// NewRule creates an active rule.
func NewRule(name, target, operator string, threshold float64, actionTaskType string) *Rule {
	return &Rule{
		ID:                 uuid.New(),
		Name:               name,
		MonitoringTarget:   target,
		ThresholdValue:     threshold,
		ComparisonOperator: operator,
		ActionOnTrigger:    actionTaskType,
		IsActive:           true,
	}
}

// Satisfied evaluates the rule against a metric value. Scalar values
// are compared directly. For aggregate (map-valued) metrics the policy
// is: the rule fires if ANY constituent value satisfies the comparison.
func (r *Rule) Satisfied(value any) (bool, error) {
	switch v := value.(type) {
	case map[string]any:
		for _, sub := range v {
			ok, err := r.Satisfied(sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case map[string]float64:
		for _, sub := range v {
			ok, err := r.compare(sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		f, err := toFloat(value)
		if err != nil {
			return false, err
		}
		return r.compare(f)
	}
}

func (r *Rule) compare(current float64) (bool, error) {
	switch r.ComparisonOperator {
	case OpGreater:
		return current > r.ThresholdValue, nil
	case OpLess:
		return current < r.ThresholdValue, nil
	case OpEqual:
		return current == r.ThresholdValue, nil
	case OpNotEqual:
		return current != r.ThresholdValue, nil
	default:
		return false, fmt.Errorf("unsupported comparison operator %q", r.ComparisonOperator)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("metric value %v (%T) is not numeric", value, value)
	}
}
