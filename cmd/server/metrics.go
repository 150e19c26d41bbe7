package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/davidhaber/taskengine/internal/task"
)

// engineMetrics exposes the engine's own operational counters as a
// monitor.MetricSource, so monitoring rules can watch the engine
// without an external metrics system.
type engineMetrics struct {
	engine *task.Engine
}

func newEngineMetrics(engine *task.Engine) *engineMetrics {
	return &engineMetrics{engine: engine}
}

// GetMetric resolves the supported targets. "tasks.by_status" is an
// aggregate metric: rules over it fire when any constituent count
// satisfies the comparison.
func (m *engineMetrics) GetMetric(ctx context.Context, target string) (any, error) {
	stats := m.engine.Stats()

	switch target {
	case "queue.depth":
		return stats.Queued, nil
	case "tasks.records":
		return stats.Records, nil
	case "tasks.failed_permanent":
		return stats.ByStatus[task.StatusFailedPermanent], nil
	case "tasks.by_status":
		byStatus := make(map[string]any, len(stats.ByStatus))
		for status, count := range stats.ByStatus {
			byStatus[string(status)] = count
		}
		return byStatus, nil
	case "runtime.goroutines":
		return runtime.NumGoroutine(), nil
	case "runtime.heap_mb":
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapAlloc) / (1 << 20), nil
	default:
		return nil, fmt.Errorf("unknown metric target %q", target)
	}
}
