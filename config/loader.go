// Package config loads the agentchain configuration from YAML files with
// environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTCHAIN").
//	    Load()
//
// Precedence: defaults, then YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete agentchain configuration.
type Config struct {
	// Pipeline holds the orchestrator knobs.
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// LLM configures the completion backend.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Redis configures the Redis history sink.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the SQLite history sink.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log configures logging.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// PipelineConfig holds the orchestrator knobs.
type PipelineConfig struct {
	// Mode is the approval mode: auto or manual.
	Mode string `yaml:"mode" env:"MODE"`
	// MaxRetries bounds per-agent retries.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// CompletionTimeout bounds every completion call.
	CompletionTimeout time.Duration `yaml:"completion_timeout" env:"COMPLETION_TIMEOUT"`
	// HistoryTail is how many trailing history entries prompts summarize.
	HistoryTail int `yaml:"history_tail" env:"HISTORY_TAIL"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	// BaseURL of the OpenAI-compatible API.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// APIKey for the backend.
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Model name sent with every request.
	Model string `yaml:"model" env:"MODEL"`
	// RequestsPerMinute enables client-side rate limiting when positive.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst" env:"BURST"`
}

// RedisConfig configures the Redis history sink.
type RedisConfig struct {
	// Enabled selects Redis as the history sink.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Addr is host:port.
	Addr string `yaml:"addr" env:"ADDR"`
	// Password, empty for none.
	Password string `yaml:"password" env:"PASSWORD"`
	// DB number.
	DB int `yaml:"db" env:"DB"`
	// KeyPrefix for all history keys.
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// PoolSize of the connection pool.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// DatabaseConfig configures the SQLite history sink.
type DatabaseConfig struct {
	// Enabled selects SQLite as the history sink.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Path to the database file, ":memory:" for ephemeral.
	Path string `yaml:"path" env:"PATH"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled serves /metrics when true.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Addr is the listen address.
	Addr string `yaml:"addr" env:"ADDR"`
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths for the logger.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTCHAIN",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration. Precedence: defaults, YAML file,
// environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Pipeline.Mode != "auto" && c.Pipeline.Mode != "manual" {
		errs = append(errs, fmt.Sprintf("unknown pipeline mode %q", c.Pipeline.Mode))
	}
	if c.Pipeline.MaxRetries <= 0 {
		errs = append(errs, "max_retries must be positive")
	}
	if c.Pipeline.CompletionTimeout <= 0 {
		errs = append(errs, "completion_timeout must be positive")
	}
	if c.Redis.Enabled && c.Database.Enabled {
		errs = append(errs, "redis and database sinks are mutually exclusive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis sink requires addr")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database sink requires path")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
