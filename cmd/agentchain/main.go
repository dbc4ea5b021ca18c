// agentchain runs a multi-agent conversation pipeline from the command
// line.
//
// Usage:
//
//	agentchain run --agents agents.yaml --input "build a todo app"
//	agentchain run --config config.yaml --agents agents.yaml --input "..."
//	agentchain run --mode manual --agents agents.yaml --input "..."
//	agentchain version
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relabs-ai/agentchain/config"
	"github.com/relabs-ai/agentchain/internal/metrics"
	"github.com/relabs-ai/agentchain/llm"
	"github.com/relabs-ai/agentchain/llm/tokenizer"
	"github.com/relabs-ai/agentchain/persistence"
	"github.com/relabs-ai/agentchain/pipeline"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runPipeline(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runPipeline(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	agentsPath := fs.String("agents", "", "Path to agents file (YAML)")
	input := fs.String("input", "", "User input for the run")
	mode := fs.String("mode", "", "Approval mode override: auto or manual")
	fs.Parse(args)

	if *agentsPath == "" || *input == "" {
		fmt.Fprintln(os.Stderr, "run requires --agents and --input")
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Pipeline.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting agentchain",
		zap.String("version", Version),
		zap.String("mode", cfg.Pipeline.Mode),
	)

	agents, err := loadAgents(*agentsPath)
	if err != nil {
		logger.Fatal("failed to load agents file", zap.Error(err))
	}

	collector := startMetrics(cfg.Metrics, logger)
	sink := openSink(cfg, logger)
	defer func() {
		if sink != nil {
			sink.Close()
		}
	}()

	var provider llm.Provider = llm.NewHTTPProvider(llm.HTTPConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, logger)
	provider = llm.WithRateLimit(provider, cfg.LLM.RequestsPerMinute, cfg.LLM.Burst, logger)

	updates := make(chan pipeline.Snapshot, 256)
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(collector),
		pipeline.WithTokenizer(tokenizer.NewTiktoken(cfg.LLM.Model)),
		pipeline.WithListener(func(snap pipeline.Snapshot) {
			select {
			case updates <- snap:
			default:
			}
		}),
	}
	if sink != nil {
		opts = append(opts, pipeline.WithSink(sink))
	}

	controller := pipeline.NewController(provider, pipeline.Config{
		Mode:              pipeline.Mode(cfg.Pipeline.Mode),
		MaxRetries:        cfg.Pipeline.MaxRetries,
		CompletionTimeout: cfg.Pipeline.CompletionTimeout,
		HistoryTail:       cfg.Pipeline.HistoryTail,
	}, opts...)

	var exitCode int
	if cfg.Pipeline.Mode == "manual" {
		exitCode = runManual(controller, *input, agents, logger)
	} else {
		exitCode = runAuto(controller, *input, agents, updates, logger)
	}
	os.Exit(exitCode)
}

// startMetrics registers the collector and serves /metrics when enabled.
func startMetrics(cfg config.MetricsConfig, logger *zap.Logger) *metrics.Collector {
	if !cfg.Enabled {
		return nil
	}
	collector := metrics.NewCollector(cfg.Namespace, prometheus.DefaultRegisterer)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("serving metrics", zap.String("addr", cfg.Addr))
		if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
			logger.Warn("metrics endpoint stopped", zap.Error(err))
		}
	}()
	return collector
}

// openSink opens the configured history sink, or none.
func openSink(cfg *config.Config, logger *zap.Logger) persistence.HistoryStore {
	switch {
	case cfg.Redis.Enabled:
		store, err := persistence.NewRedisHistoryStore(persistence.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			PoolSize:  cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.Fatal("failed to open redis history sink", zap.Error(err))
		}
		logger.Info("history sink: redis", zap.String("addr", cfg.Redis.Addr))
		return store
	case cfg.Database.Enabled:
		store, err := persistence.NewGormHistoryStore(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open sqlite history sink", zap.Error(err))
		}
		logger.Info("history sink: sqlite", zap.String("path", cfg.Database.Path))
		return store
	default:
		return nil
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func printVersion() {
	fmt.Printf("agentchain %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
}

func printUsage() {
	fmt.Println(`agentchain - multi-agent conversation pipeline

Usage:
  agentchain <command> [options]

Commands:
  run       Run a pipeline
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)
  --agents <path>   Path to agents file (YAML), required
  --input <text>    User input for the run, required
  --mode <mode>     Approval mode override: auto or manual`)
}
