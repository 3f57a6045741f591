package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elitedynamics/stepflow/internal/application/audit"
	"github.com/elitedynamics/stepflow/internal/application/cascade"
	"github.com/elitedynamics/stepflow/internal/application/orchestrator"
	"github.com/elitedynamics/stepflow/internal/application/registry"
	"github.com/elitedynamics/stepflow/internal/application/scheduler"
	"github.com/elitedynamics/stepflow/internal/application/state"
	"github.com/elitedynamics/stepflow/internal/config"
	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/pkg/adapters/actions/anthropic"
	"github.com/elitedynamics/stepflow/pkg/adapters/actions/httpcall"
	memoryevents "github.com/elitedynamics/stepflow/pkg/adapters/events/memory"
	redisevents "github.com/elitedynamics/stepflow/pkg/adapters/events/redis"
	"github.com/elitedynamics/stepflow/pkg/adapters/metrics/prometheus"
	memorystorage "github.com/elitedynamics/stepflow/pkg/adapters/storage/memory"
	redisstorage "github.com/elitedynamics/stepflow/pkg/adapters/storage/redis"
	"github.com/elitedynamics/stepflow/pkg/api/grpc"
	"github.com/elitedynamics/stepflow/pkg/api/http"
	"github.com/elitedynamics/stepflow/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting stepflow orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	redisClient := goredis.NewClient(&goredis.Options{
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

	// Storage tiers: in-process hot, Redis warm, Redis list-backed cold.
	store := state.New(
		memorystorage.NewHotStore(),
		redisstorage.NewWarmStore(redisClient, logger),
		redisstorage.NewArchive(redisClient, logger),
		cfg.Engine.StateTTL,
		logger,
	)

	// Event bus with the Redis Streams bridge and audit trail attached.
	eventBus := memoryevents.NewBus(logger)
	redisevents.NewStreamBridge(redisClient, 10000, logger).Attach(eventBus)
	audit.NewRecorder(store, logger).Attach(eventBus)

	// Action registry: the REST catalog plus the LLM action.
	creds := registry.StaticCredentials{}
	for service, token := range cfg.Actions.Tokens {
		creds[service] = domain.Credentials{"token": token}
	}
	if cfg.Actions.AnthropicAPIKey != "" {
		creds["anthropic"] = domain.Credentials{"api_key": cfg.Actions.AnthropicAPIKey}
	}

	builder := registry.NewBuilder()
	httpActions := httpcall.NewClient(cfg.Actions.Endpoints, cfg.Actions.RequestTimeout, logger)
	for _, endpoint := range httpcall.Catalog() {
		builder.MustRegister(endpoint.Spec(), httpActions.Action(endpoint))
	}
	builder.MustRegister(anthropic.Spec(), anthropic.Generate())
	invoker := builder.Build(creds, logger)

	// Event-driven follow-up actions, e.g. a chat notification on failure.
	cascades := cascade.NewDispatcher(invoker, logger, cfg.Actions.RequestTimeout)
	if err := cascades.AttachEntries(eventBus, cfg.Cascade.Entries); err != nil {
		logger.Fatal("failed to attach cascade entries", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector(promclient.DefaultRegisterer)

	validator := orchestrator.NewValidator(invoker)

	templates := orchestrator.NewTemplates()
	for _, def := range orchestrator.DefaultTemplates() {
		if err := templates.Register(def); err != nil {
			logger.Fatal("failed to register template", zap.String("workflow", def.ID), zap.Error(err))
		}
	}

	engine := orchestrator.NewEngine(invoker, store, eventBus, metricsCollector, logger, orchestrator.EngineConfig{
		MaxInFlight:  cfg.Engine.MaxInFlight,
		MaxAttempts:  cfg.Engine.MaxAttempts,
		RetryInitial: cfg.Engine.RetryInitial,
		RetryMax:     cfg.Engine.RetryMax,
		StepTimeout:  cfg.Timeouts.StepTimeout,
	})

	manager := orchestrator.NewManager(
		engine,
		validator,
		templates,
		store,
		metricsCollector,
		logger,
		cfg.Timeouts.RunTimeout,
	)

	sched := scheduler.New(manager, logger, 30*time.Second)
	if err := sched.RegisterEntries(cfg.Scheduler.Entries); err != nil {
		logger.Fatal("failed to register schedule entries", zap.Error(err))
	}
	sched.Start()

	httpServer := http.NewServer(&http.Config{
		Port:    cfg.HTTPPort,
		Manager: manager,
		Logger:  logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:    cfg.GRPCPort,
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("stepflow orchestrator started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("max_in_flight", cfg.Engine.MaxInFlight))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", zap.Error(err))
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("state store close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("stepflow orchestrator shut down complete")
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
