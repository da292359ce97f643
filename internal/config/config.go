package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the campaign orchestrator
type Config struct {
	// Server configuration
	HTTPPort int    `env:"CAMPO_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend selection
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	EventsBackend  string `env:"EVENTS_BACKEND" envDefault:"memory"`

	// Redis configuration (used when a redis backend is selected)
	Redis RedisConfig

	// Agent service configuration
	Agents AgentConfig

	// Runner configuration
	Runners RunnerConfig

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

	// Retention for pipeline states
	StateTTL time.Duration `env:"STATE_TTL" envDefault:"24h"`
}

// AgentConfig holds the external agent service endpoints and the retry
// policy applied to agent calls
type AgentConfig struct {
	SegmentationURL string `env:"AGENT_SEGMENTATION_URL" envDefault:"http://localhost:8101"`
	ContentURL      string `env:"AGENT_CONTENT_URL" envDefault:"http://localhost:8102"`
	GenerationURL   string `env:"AGENT_GENERATION_URL" envDefault:"http://localhost:8103"`
	ComplianceURL   string `env:"AGENT_COMPLIANCE_URL" envDefault:"http://localhost:8104"`

	// Per-call ceiling; exceeding it is treated as a connection failure
	Timeout time.Duration `env:"AGENT_TIMEOUT" envDefault:"30s"`

	MaxRetries int           `env:"AGENT_MAX_RETRIES" envDefault:"2"`
	RetryDelay time.Duration `env:"AGENT_RETRY_DELAY" envDefault:"2s"`

	// Content retrieval search bound
	TemplateLimit int `env:"AGENT_TEMPLATE_LIMIT" envDefault:"5"`
}

// RunnerConfig holds runner pool configuration
type RunnerConfig struct {
	PoolSize            int           `env:"RUNNER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"RUNNER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	PipelineExecutionTimeout time.Duration `env:"TIMEOUT_PIPELINE_EXECUTION" envDefault:"600s"` // 10 minutes
	ShutdownTimeout          time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
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
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StorageBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or redis)", c.StorageBackend)
	}

	switch c.EventsBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid events backend: %s (must be memory or redis)", c.EventsBackend)
	}

	if (c.StorageBackend == "redis" || c.EventsBackend == "redis") && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for redis backends")
	}

	for name, url := range map[string]string{
		"segmentation": c.Agents.SegmentationURL,
		"content":      c.Agents.ContentURL,
		"generation":   c.Agents.GenerationURL,
		"compliance":   c.Agents.ComplianceURL,
	} {
		if url == "" {
			return fmt.Errorf("%s agent URL is required", name)
		}
	}

	if c.Agents.MaxRetries < 0 {
		return fmt.Errorf("agent max retries must not be negative")
	}

	if c.Runners.PoolSize < 1 {
		return fmt.Errorf("runner pool size must be at least 1")
	}

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
