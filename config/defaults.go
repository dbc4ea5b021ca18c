package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: DefaultPipelineConfig(),
		LLM:      DefaultLLMConfig(),
		Redis:    DefaultRedisConfig(),
		Database: DefaultDatabaseConfig(),
		Metrics:  DefaultMetricsConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultPipelineConfig returns the default orchestrator knobs.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Mode:              "auto",
		MaxRetries:        3,
		CompletionTimeout: 60 * time.Second,
		HistoryTail:       5,
	}
}

// DefaultLLMConfig returns the default completion backend settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:           "https://api.openai.com",
		APIKey:            "",
		Model:             "gpt-4o-mini",
		RequestsPerMinute: 0,
		Burst:             1,
	}
}

// DefaultRedisConfig returns the default Redis sink settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		KeyPrefix: "agentchain:",
		PoolSize:  10,
	}
}

// DefaultDatabaseConfig returns the default SQLite sink settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled: false,
		Path:    "agentchain.db",
	}
}

// DefaultMetricsConfig returns the default metrics settings.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      ":9091",
		Namespace: "agentchain",
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
