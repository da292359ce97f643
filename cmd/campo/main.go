package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campaignops/campo/internal/application/executor"
	"github.com/campaignops/campo/internal/application/orchestrator"
	"github.com/campaignops/campo/internal/application/workers"
	"github.com/campaignops/campo/internal/config"
	"github.com/campaignops/campo/pkg/adapters/agents"
	memoryevents "github.com/campaignops/campo/pkg/adapters/events/memory"
	redisevents "github.com/campaignops/campo/pkg/adapters/events/redis"
	"github.com/campaignops/campo/pkg/adapters/metrics/prometheus"
	memorystore "github.com/campaignops/campo/pkg/adapters/statestore/memory"
	redisstore "github.com/campaignops/campo/pkg/adapters/statestore/redis"
	"github.com/campaignops/campo/pkg/api/http"
	"github.com/campaignops/campo/pkg/api/websocket"
	"github.com/campaignops/campo/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting campaign orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client only when a redis backend is selected
	var redisClient *goredis.Client
	if cfg.StorageBackend == "redis" || cfg.EventsBackend == "redis" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		ctx := context.Background()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize adapters
	var stateStore ports.StateStore
	switch cfg.StorageBackend {
	case "redis":
		stateStore = redisstore.NewStore(redisClient, cfg.Redis.StateTTL, logger)
	default:
		stateStore = memorystore.NewStore()
	}

	var eventBus ports.EventBus
	switch cfg.EventsBackend {
	case "redis":
		eventBus, err = redisevents.NewStreamsEventBus(
			redisClient,
			"campo-runners",
			fmt.Sprintf("campo-%d", os.Getpid()),
			logger,
		)
		if err != nil {
			logger.Fatal("failed to create event bus", zap.Error(err))
		}
	default:
		eventBus = memoryevents.NewInMemoryEventBus()
	}

	metricsCollector := prometheus.NewCollector()

	// Agent clients
	segmentationClient := agents.NewSegmentationClient(cfg.Agents.SegmentationURL, cfg.Agents.Timeout, logger)
	contentClient := agents.NewContentClient(cfg.Agents.ContentURL, cfg.Agents.Timeout, logger)
	generationClient := agents.NewGenerationClient(cfg.Agents.GenerationURL, cfg.Agents.Timeout, logger)
	complianceClient := agents.NewComplianceClient(cfg.Agents.ComplianceURL, cfg.Agents.Timeout, logger)

	// Initialize application components
	exec := executor.New(
		stateStore,
		eventBus,
		metricsCollector,
		segmentationClient,
		contentClient,
		generationClient,
		complianceClient,
		logger,
		executor.Config{
			MaxRetries:    cfg.Agents.MaxRetries,
			RetryDelay:    cfg.Agents.RetryDelay,
			TemplateLimit: cfg.Agents.TemplateLimit,
		},
	)

	runnerPool := workers.NewPool(
		cfg.Runners.PoolSize,
		exec,
		stateStore,
		metricsCollector,
		logger,
		cfg.Runners.HealthCheckInterval,
		cfg.Timeouts.PipelineExecutionTimeout,
	)

	if err := runnerPool.Start(); err != nil {
		logger.Fatal("failed to start runner pool", zap.Error(err))
	}

	validator := orchestrator.NewValidator()

	orchestratorMgr := orchestrator.NewManager(
		validator,
		stateStore,
		metricsCollector,
		runnerPool,
		logger,
	)

	// Initialize API server
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Compliance:   complianceClient,
		Logger:       logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("campaign orchestrator started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("events_backend", cfg.EventsBackend),
		zap.Int("runner_pool_size", cfg.Runners.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := runnerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("runner pool shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("campaign orchestrator shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
