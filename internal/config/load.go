package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables with the TASKENGINE_ prefix
// (dots become underscores, e.g. TASKENGINE_ENGINE_WORKER_COUNT).
// Environment variables take precedence over file values, which take
// precedence over defaults. The result is validated before it is
// returned.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the documented defaults for every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("engine.worker_count", 10)
	v.SetDefault("engine.queue_capacity", 1000)
	v.SetDefault("engine.dequeue_wait", "500ms")
	v.SetDefault("engine.base_retry_delay", "60s")
	v.SetDefault("engine.max_retry_delay", "300s")
	v.SetDefault("engine.default_max_retries", 3)
	v.SetDefault("engine.default_timeout", "300s")
	v.SetDefault("engine.housekeeping_interval", "5m")
	v.SetDefault("engine.retention_window", "24h")

	v.SetDefault("monitor.interval", "30s")

	// An empty default registers the key so AutomaticEnv can fill it
	// during Unmarshal.
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
}
