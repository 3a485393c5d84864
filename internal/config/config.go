// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"RANKEVAL_HOST" yaml:"host"`
	Port int    `envconfig:"RANKEVAL_PORT" yaml:"port"`

	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Snapshot configuration
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// EvalConfig holds evaluation engine settings.
type EvalConfig struct {
	// Metrics is a comma-separated list of metric specs such as
	// "ndcg@5,mrr,map". Empty selects the default metric set.
	Metrics string `envconfig:"RANKEVAL_METRICS" yaml:"metrics"`

	// Alpha is the redundancy penalty for alpha-DCG.
	Alpha float64 `envconfig:"RANKEVAL_ALPHA" yaml:"alpha"`

	// Seed keys randomized tie-breaking; 0 disables it.
	Seed int64 `envconfig:"RANKEVAL_SEED" yaml:"seed"`

	// Workers bounds how many queries are evaluated concurrently.
	Workers int `envconfig:"RANKEVAL_EVAL_WORKERS" yaml:"workers"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"RANKEVAL_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"RANKEVAL_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"RANKEVAL_KAFKA_GROUP" yaml:"kafka_group"`

	// EventLog is a file path for the durable event log; empty disables it.
	EventLog string `envconfig:"RANKEVAL_BUS_EVENT_LOG" yaml:"event_log"`
}

// SnapshotConfig holds aggregate snapshot persistence settings.
type SnapshotConfig struct {
	Type     string `envconfig:"RANKEVAL_SNAPSHOT_TYPE" yaml:"type"`
	RedisURL string `envconfig:"RANKEVAL_REDIS_URL" yaml:"redis_url"`
	TTLHours int    `envconfig:"RANKEVAL_SNAPSHOT_TTL_HOURS" yaml:"ttl_hours"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RANKEVAL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RANKEVAL_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	APIKey    string `envconfig:"RANKEVAL_API_KEY" yaml:"api_key"`
	RateLimit int    `envconfig:"RANKEVAL_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	MetricsEnabled bool   `envconfig:"RANKEVAL_METRICS_ENABLED" yaml:"metrics_enabled"`
	MetricsPath    string `envconfig:"RANKEVAL_METRICS_PATH" yaml:"metrics_path"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Eval = EvalConfig{
		Alpha:   0.5,
		Workers: 4,
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Snapshot = SnapshotConfig{
		Type:     "none",
		RedisURL: "redis://localhost:6379",
		TTLHours: 24,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit: 0,
	}

	cfg.Observability = ObservabilityConfig{
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	// Eval validation
	if c.Eval.Alpha < 0 || c.Eval.Alpha > 1 {
		errs = append(errs, "alpha must be between 0 and 1")
	}

	if c.Eval.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	// Snapshot validation
	validSnapshotTypes := map[string]bool{"none": true, "memory": true, "redis": true}
	if !validSnapshotTypes[c.Snapshot.Type] {
		errs = append(errs, fmt.Sprintf("invalid snapshot type: %s (must be none, memory, or redis)", c.Snapshot.Type))
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
