package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidhaber/taskengine/internal/config"
	"github.com/davidhaber/taskengine/internal/handlers"
	"github.com/davidhaber/taskengine/internal/intelligence"
	"github.com/davidhaber/taskengine/internal/monitor"
	"github.com/davidhaber/taskengine/internal/platform/gemini"
	"github.com/davidhaber/taskengine/internal/task"
	"github.com/davidhaber/taskengine/internal/trigger"
)

// application holds the initialized components and their dependencies.
// Everything is wired here, once, at startup; no package keeps global
// mutable state.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	engine  *task.Engine
	gateway *trigger.Gateway
	monitor *monitor.Engine
}

// newApplication constructs and wires all application components:
// engine, handlers, trigger definitions, and monitoring rules.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	engine := task.NewEngine(task.EngineConfig{
		WorkerCount:          cfg.Engine.WorkerCount,
		QueueCapacity:        cfg.Engine.QueueCapacity,
		DequeueWait:          cfg.Engine.DequeueWait,
		BaseRetryDelay:       cfg.Engine.BaseRetryDelay,
		MaxRetryDelay:        cfg.Engine.MaxRetryDelay,
		DefaultMaxRetries:    cfg.Engine.DefaultMaxRetries,
		DefaultTimeout:       cfg.Engine.DefaultTimeout,
		HousekeepingInterval: cfg.Engine.HousekeepingInterval,
		RetentionWindow:      cfg.Engine.RetentionWindow,
	}, logger)

	metrics := newEngineMetrics(engine)

	var provider intelligence.Provider
	if cfg.LLM.GeminiAPIKey != "" {
		p, err := gemini.NewProvider(ctx, logger, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini provider: %w", err)
		}
		provider = p
	} else {
		logger.Info("no LLM API key configured, synthesis handler disabled")
	}

	if err := handlers.Register(engine.Registry(), handlers.Deps{
		Provider: provider,
		Metrics:  metrics,
		Logger:   logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to register task handlers: %w", err)
	}

	gateway := trigger.NewGateway(engine, trigger.TaskDefaults{
		Priority:   task.PriorityHigh,
		MaxRetries: cfg.Engine.DefaultMaxRetries,
		Timeout:    cfg.Engine.DefaultTimeout,
	}, logger)

	if err := registerTriggers(gateway, provider != nil); err != nil {
		return nil, fmt.Errorf("failed to register triggers: %w", err)
	}
	if err := registerConfiguredTriggers(gateway, cfg.Triggers); err != nil {
		return nil, fmt.Errorf("failed to register configured triggers: %w", err)
	}

	monitorEngine := monitor.NewEngine(metrics, gateway, monitor.Config{
		Interval: cfg.Monitor.Interval,
	}, logger)

	if err := registerRules(monitorEngine); err != nil {
		return nil, fmt.Errorf("failed to register monitoring rules: %w", err)
	}
	if err := registerConfiguredRules(monitorEngine, cfg.Rules); err != nil {
		return nil, fmt.Errorf("failed to register configured rules: %w", err)
	}

	// Fail fast on trigger or rule mappings with no registered handler.
	mapped := append(gateway.TaskTypes(), monitorEngine.TaskTypes()...)
	if err := engine.Registry().Validate(mapped...); err != nil {
		return nil, fmt.Errorf("startup validation failed: %w", err)
	}

	return &application{
		config:  cfg,
		logger:  logger,
		engine:  engine,
		gateway: gateway,
		monitor: monitorEngine,
	}, nil
}

// registerTriggers installs the built-in trigger definitions.
func registerTriggers(gateway *trigger.Gateway, withSynthesis bool) error {
	if withSynthesis {
		if err := gateway.Register(trigger.New(
			"project_submitted",
			handlers.TypeReportSynthesize,
			map[string]string{
				"subject": trigger.FieldRequired,
				"detail":  trigger.FieldOptional,
			},
		)); err != nil {
			return err
		}
	}

	if err := gateway.Register(trigger.New(
		"metric_snapshot_requested",
		handlers.TypeMetricsSnapshot,
		map[string]string{"target": trigger.FieldRequired},
	)); err != nil {
		return err
	}

	return gateway.Register(trigger.New(
		"maintenance_requested",
		handlers.TypeMaintenanceNoop,
		nil,
	))
}

// registerConfiguredTriggers installs trigger definitions declared in
// the config file. Their task-type mappings are validated against the
// registry with everything else before the engine starts.
func registerConfiguredTriggers(gateway *trigger.Gateway, configs []config.TriggerConfig) error {
	for _, tc := range configs {
		fields := make(map[string]string, len(tc.RequiredFields)+len(tc.OptionalFields))
		for _, f := range tc.RequiredFields {
			fields[f] = trigger.FieldRequired
		}
		for _, f := range tc.OptionalFields {
			fields[f] = trigger.FieldOptional
		}
		if err := gateway.Register(trigger.New(tc.Name, tc.TaskType, fields)); err != nil {
			return fmt.Errorf("trigger %q: %w", tc.Name, err)
		}
	}
	return nil
}

// registerConfiguredRules installs monitoring rules declared in the
// config file.
func registerConfiguredRules(m *monitor.Engine, configs []config.RuleConfig) error {
	for _, rc := range configs {
		rule := monitor.NewRule(rc.Name, rc.Target, rc.Operator, rc.Threshold, rc.TaskType)
		if err := m.AddRule(rule); err != nil {
			return fmt.Errorf("rule %q: %w", rc.Name, err)
		}
	}
	return nil
}

// registerRules installs the built-in monitoring rules over the
// engine's own metrics.
func registerRules(m *monitor.Engine) error {
	if err := m.AddRule(monitor.NewRule(
		"queue_backlog",
		"queue.depth",
		monitor.OpGreater,
		800,
		handlers.TypeMaintenanceNoop,
	)); err != nil {
		return err
	}

	return m.AddRule(monitor.NewRule(
		"permanent_failure_spike",
		"tasks.failed_permanent",
		monitor.OpGreater,
		50,
		handlers.TypeMetricsSnapshot,
	))
}

// run starts the engine, the monitoring loop, and the HTTP server, then
// blocks until shutdown completes.
func (app *application) run() error {
	if err := app.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	app.monitor.Start()

	return app.startHTTPServer(app.setupRouter())
}

// cleanup stops the periodic loops and drains the engine.
func (app *application) cleanup() {
	app.monitor.Stop()
	app.engine.Stop()
}
