package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.Equal(t, 10, cfg.Engine.WorkerCount)
	assert.Equal(t, 1000, cfg.Engine.QueueCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.DequeueWait)
	assert.Equal(t, 60*time.Second, cfg.Engine.BaseRetryDelay)
	assert.Equal(t, 300*time.Second, cfg.Engine.MaxRetryDelay)
	assert.Equal(t, 3, cfg.Engine.DefaultMaxRetries)
	assert.Equal(t, 300*time.Second, cfg.Engine.DefaultTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Engine.HousekeepingInterval)
	assert.Equal(t, 24*time.Hour, cfg.Engine.RetentionWindow)

	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)

	// The LLM group is optional and has no key by default.
	assert.Empty(t, cfg.LLM.GeminiAPIKey)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TASKENGINE_SERVER_PORT", "9090")
	t.Setenv("TASKENGINE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("TASKENGINE_ENGINE_WORKER_COUNT", "4")
	t.Setenv("TASKENGINE_ENGINE_BASE_RETRY_DELAY", "5s")
	t.Setenv("TASKENGINE_MONITOR_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Engine.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.Engine.BaseRetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "TASKENGINE_SERVER_PORT", "70000"},
		{"bad log level", "TASKENGINE_SERVER_LOG_LEVEL", "verbose"},
		{"zero workers", "TASKENGINE_ENGINE_WORKER_COUNT", "0"},
		{"zero queue capacity", "TASKENGINE_ENGINE_QUEUE_CAPACITY", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsCapBelowBase(t *testing.T) {
	t.Setenv("TASKENGINE_ENGINE_BASE_RETRY_DELAY", "10m")
	t.Setenv("TASKENGINE_ENGINE_MAX_RETRY_DELAY", "1m")

	_, err := Load()
	assert.Error(t, err)
}
