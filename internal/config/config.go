package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the stepflow orchestrator
type Config struct {
	// Server configuration
	HTTPPort int    `env:"STEPFLOW_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"STEPFLOW_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Engine configuration
	Engine EngineConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Cascade configuration
	Cascade CascadeConfig

	// Action adapter configuration
	Actions ActionConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// EngineConfig holds workflow engine configuration
type EngineConfig struct {
	MaxInFlight  int           `env:"ENGINE_MAX_IN_FLIGHT" envDefault:"4"`
	MaxAttempts  int           `env:"ENGINE_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitial time.Duration `env:"ENGINE_RETRY_INITIAL" envDefault:"500ms"`
	RetryMax     time.Duration `env:"ENGINE_RETRY_MAX" envDefault:"30s"`

	// TTL for run state in the warm tier
	StateTTL time.Duration `env:"ENGINE_STATE_TTL" envDefault:"24h"`
}

// SchedulerConfig holds recurring workflow trigger configuration.
// Entries use the form "workflow=spec" where spec is a cron expression
// or an @every interval, e.g. "full_backup=@every 24h".
type SchedulerConfig struct {
	Entries []string `env:"SCHEDULE_ENTRIES" envSeparator:";"`
}

// CascadeConfig holds event-driven follow-up action configuration.
// Entries use the form "event=action", e.g.
// "workflow.failed=teams.send_channel_message".
type CascadeConfig struct {
	Entries []string `env:"CASCADE_ENTRIES" envSeparator:";"`
}

// ActionConfig holds action adapter configuration
type ActionConfig struct {
	// Endpoints maps service names to REST base URLs for the generic
	// HTTP action adapter, e.g. "graph:https://...,notion:https://..."
	Endpoints map[string]string `env:"ACTION_ENDPOINTS"`

	// Tokens maps service names to bearer tokens for the REST actions,
	// e.g. "notion:secret_abc,hubspot:pat-123"
	Tokens map[string]string `env:"ACTION_TOKENS"`

	// AnthropicAPIKey enables the llm.generate action when set
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	RequestTimeout time.Duration `env:"ACTION_REQUEST_TIMEOUT" envDefault:"60s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"3600s"` // 1 hour
	StepTimeout     time.Duration `env:"TIMEOUT_STEP" envDefault:"300s"` // 5 minutes
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate engine config
	if c.Engine.MaxInFlight < 1 {
		return fmt.Errorf("engine max in-flight must be at least 1")
	}
	if c.Engine.MaxAttempts < 1 {
		return fmt.Errorf("engine max attempts must be at least 1")
	}
	if c.Engine.RetryInitial <= 0 || c.Engine.RetryMax < c.Engine.RetryInitial {
		return fmt.Errorf("invalid retry backoff bounds: initial=%s max=%s",
			c.Engine.RetryInitial, c.Engine.RetryMax)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
