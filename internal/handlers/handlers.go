// Package handlers provides the built-in task handlers registered into
// the engine at startup.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidhaber/taskengine/internal/intelligence"
	"github.com/davidhaber/taskengine/internal/monitor"
	"github.com/davidhaber/taskengine/internal/task"
)

// Task types handled by this package.
const (
	TypeReportSynthesize = "report.synthesize"
	TypeMetricsSnapshot  = "metrics.snapshot"
	TypeMaintenanceNoop  = "maintenance.noop"
)

// Deps holds the external collaborators the built-in handlers use.
// Provider may be nil, in which case the synthesis handler is skipped.
type Deps struct {
	Provider intelligence.Provider
	Metrics  monitor.MetricSource
	Logger   *slog.Logger
}

// Register wires the built-in handlers into the registry. Must be
// called before the engine starts.
func Register(registry *task.HandlerRegistry, deps Deps) error {
	if deps.Provider != nil {
		if err := registry.Register(TypeReportSynthesize, ReportSynthesize(deps.Provider)); err != nil {
			return err
		}
	}
	if deps.Metrics != nil {
		if err := registry.Register(TypeMetricsSnapshot, MetricsSnapshot(deps.Metrics)); err != nil {
			return err
		}
	}
	return registry.Register(TypeMaintenanceNoop, MaintenanceNoop())
}

// ReportSynthesize returns a handler that asks the language-completion
// provider for a short report about the payload's subject. The engine
// treats any provider error as a transient handler failure and applies
// the normal retry policy.
func ReportSynthesize(provider intelligence.Provider) task.Handler {
	return func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		subject, ok := payload["subject"].(string)
		if !ok || subject == "" {
			return nil, fmt.Errorf("payload field %q must be a non-empty string", "subject")
		}

		prompt := fmt.Sprintf("Write a concise status report about: %s", subject)
		if detail, ok := payload["detail"].(string); ok && detail != "" {
			prompt = fmt.Sprintf("%s\n\nAdditional context:\n%s", prompt, detail)
		}

		text, err := provider.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("synthesize report for %q: %w", subject, err)
		}

		return map[string]any{"subject": subject, "report": text}, nil
	}
}

// MetricsSnapshot returns a handler that captures the current value of
// the metric named in the payload's "target" field.
func MetricsSnapshot(source monitor.MetricSource) task.Handler {
	return func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		target, ok := payload["target"].(string)
		if !ok || target == "" {
			return nil, fmt.Errorf("payload field %q must be a non-empty string", "target")
		}

		value, err := source.GetMetric(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("snapshot metric %q: %w", target, err)
		}

		return map[string]any{"target": target, "value": value}, nil
	}
}

// MaintenanceNoop returns a handler that succeeds without side effects.
// Monitoring rules whose only purpose is to surface a breach in the
// status store map to this type.
func MaintenanceNoop() task.Handler {
	return func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"acknowledged": true}, nil
	}
}
