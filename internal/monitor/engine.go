package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/davidhaber/taskengine/internal/task"
)

// MetricSource supplies the current value of a monitoring target. The
// implementation is an external collaborator; the value may be a scalar
// or a map of sub-metric name to scalar.
type MetricSource interface {
	GetMetric(ctx context.Context, target string) (any, error)
}

// MetricSourceFunc adapts a function to the MetricSource interface.
type MetricSourceFunc func(ctx context.Context, target string) (any, error)

// GetMetric calls f.
func (f MetricSourceFunc) GetMetric(ctx context.Context, target string) (any, error) {
	return f(ctx, target)
}

// TaskEmitter is the slice of the trigger gateway the monitor uses to
// create tasks, so rule-produced tasks travel the same path as
// webhook-produced ones.
type TaskEmitter interface {
	Emit(ctx context.Context, taskType string, payload map[string]any, source task.Source) (*task.Task, error)
}

// Config holds monitoring engine settings.
type Config struct {
	// Interval is the evaluation tick. Defaults to 30s.
	Interval time.Duration
}

// DefaultConfig returns the default monitoring configuration.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Engine evaluates all active rules against the metric source on a
// fixed tick and emits a task for each rule whose condition holds. It
// runs as an independent periodic loop, not as a queue worker.
type Engine struct {
	mu     sync.Mutex
	rules  map[string]*Rule
	source MetricSource
	emit   TaskEmitter
	config Config
	logger *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewEngine creates a monitoring engine.
func NewEngine(source MetricSource, emitter TaskEmitter, config Config, logger *slog.Logger) *Engine {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Engine{
		rules:  make(map[string]*Rule),
		source: source,
		emit:   emitter,
		config: config,
		logger: logger.With("component", "monitoring_engine"),
	}
}

// AddRule registers a rule. Rules are added at startup configuration
// time and never deleted at runtime.
func (e *Engine) AddRule(r *Rule) error {
	if _, err := r.compare(0); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[r.Name]; ok {
		return fmt.Errorf("rule %q already registered", r.Name)
	}
	e.rules[r.Name] = r
	return nil
}

// TaskTypes returns every task type a rule can emit, for startup
// fail-fast validation against the handler registry.
func (e *Engine) TaskTypes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		types = append(types, r.ActionOnTrigger)
	}
	sort.Strings(types)
	return types
}

// Rules returns copies of all registered rules.
func (e *Engine) Rules() []*Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the evaluation ticker.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(ctx)

	e.logger.Info("monitoring engine started", "interval", e.config.Interval)
}

// Stop cancels the evaluation loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.logger.Info("monitoring engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll runs one evaluation pass over every active rule. Each
// rule's LastChecked is updated regardless of outcome; TriggerCount is
// bumped only when the rule fires and its task is enqueued.
func (e *Engine) EvaluateAll(ctx context.Context) {
	e.mu.Lock()
	rules := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.Unlock()

	for _, r := range rules {
		e.evaluate(ctx, r)
	}
}

func (e *Engine) evaluate(ctx context.Context, r *Rule) {
	if !r.IsActive {
		return
	}

	now := time.Now().UTC()
	defer func() {
		e.mu.Lock()
		r.LastChecked = &now
		e.mu.Unlock()
	}()

	value, err := e.source.GetMetric(ctx, r.MonitoringTarget)
	if err != nil {
		e.logger.Warn("failed to fetch metric",
			"rule", r.Name,
			"target", r.MonitoringTarget,
			"error", err)
		return
	}

	fired, err := r.Satisfied(value)
	if err != nil {
		e.logger.Warn("rule evaluation failed",
			"rule", r.Name,
			"target", r.MonitoringTarget,
			"error", err)
		return
	}
	if !fired {
		return
	}

	payload := map[string]any{
		"rule_id":   r.ID.String(),
		"rule_name": r.Name,
		"target":    r.MonitoringTarget,
		"value":     value,
		"threshold": r.ThresholdValue,
		"operator":  r.ComparisonOperator,
	}

	t, err := e.emit.Emit(ctx, r.ActionOnTrigger, payload, task.SourcePatternDetection)
	if err != nil {
		e.logger.Error("failed to emit task for rule",
			"rule", r.Name,
			"task_type", r.ActionOnTrigger,
			"error", err)
		return
	}

	e.mu.Lock()
	r.TriggerCount++
	e.mu.Unlock()

	e.logger.Info("monitoring rule fired",
		"rule", r.Name,
		"target", r.MonitoringTarget,
		"threshold", r.ThresholdValue,
		"operator", r.ComparisonOperator,
		"task_id", t.ID)
}
