package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"   validate:"required"`
	Engine   EngineConfig    `mapstructure:"engine"   validate:"required"`
	Monitor  MonitorConfig   `mapstructure:"monitor"  validate:"required"`
	LLM      LLMConfig       `mapstructure:"llm"`
	Triggers []TriggerConfig `mapstructure:"triggers" validate:"dive"`
	Rules    []RuleConfig    `mapstructure:"rules"    validate:"dive"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// EngineConfig contains the task engine tunables.
type EngineConfig struct {
	WorkerCount          int           `mapstructure:"worker_count"          validate:"required,gt=0"`
	QueueCapacity        int           `mapstructure:"queue_capacity"        validate:"required,gt=0"`
	DequeueWait          time.Duration `mapstructure:"dequeue_wait"          validate:"required"`
	BaseRetryDelay       time.Duration `mapstructure:"base_retry_delay"      validate:"required"`
	MaxRetryDelay        time.Duration `mapstructure:"max_retry_delay"       validate:"required,gtefield=BaseRetryDelay"`
	DefaultMaxRetries    int           `mapstructure:"default_max_retries"   validate:"required,gte=0"`
	DefaultTimeout       time.Duration `mapstructure:"default_timeout"       validate:"required"`
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval" validate:"required"`
	RetentionWindow      time.Duration `mapstructure:"retention_window"      validate:"required"`
}

// MonitorConfig contains the monitoring engine settings.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"required"`
}

// TriggerConfig declares an additional trigger definition loaded from
// the config file, registered alongside the built-ins at startup. The
// task type must have a registered handler or startup fails.
type TriggerConfig struct {
	Name           string   `mapstructure:"name"            validate:"required"`
	TaskType       string   `mapstructure:"task_type"       validate:"required"`
	RequiredFields []string `mapstructure:"required_fields"`
	OptionalFields []string `mapstructure:"optional_fields"`
}

// RuleConfig declares an additional monitoring rule loaded from the
// config file. Operator must be one of > < == !=; AddRule rejects
// anything else at startup.
type RuleConfig struct {
	Name      string  `mapstructure:"name"      validate:"required"`
	Target    string  `mapstructure:"target"    validate:"required"`
	Operator  string  `mapstructure:"operator"  validate:"required"`
	Threshold float64 `mapstructure:"threshold"`
	TaskType  string  `mapstructure:"task_type" validate:"required"`
}

// LLMConfig contains the language-model provider settings. The group is
// optional: when no API key is configured the synthesis handler is not
// registered.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}
