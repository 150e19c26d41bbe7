// Package main implements the entry point for the task engine server:
// a priority-queued background task processor fed by webhook triggers
// and periodic monitoring rules.
package main

import (
	"context"
	"log"

	"github.com/davidhaber/taskengine/internal/config"
	"github.com/davidhaber/taskengine/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server)

	app, err := newApplication(context.Background(), cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
