package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homebase-backend/internal/assistant"
	"homebase-backend/internal/config"
	"homebase-backend/internal/database"
	"homebase-backend/internal/handlers"
	"homebase-backend/internal/middleware"
	"homebase-backend/internal/repository"
	"homebase-backend/internal/router"
	"homebase-backend/internal/services"
	"homebase-backend/internal/websocket"
	"homebase-backend/internal/worker"
)

const workerCount = 3

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLevel(cfg.LogLevel))
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("starting HomeBase backend", "env", cfg.Env, "model_provider", cfg.ModelProvider)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("postgres connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClients.Close()
	logger.Info("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations", logger); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// ──── Initialize Repositories ────
	assistantRepo := repository.NewAssistantRepo(pool)
	homeRepo := repository.NewHomeRepo(pool)
	requestRepo := repository.NewServiceRequestRepo(pool)
	providerRepo := repository.NewProviderRepo(pool)

	// ──── Step 5: Initialize Model Client ────
	model, closeModel, err := newModelClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeModel()

	// ──── Initialize Assistant Engine ────
	propertyLookup := services.NewPropertyLookupService(
		cfg.PropertyLookupURL,
		cfg.PropertyLookupAPIKey,
		redisClients.Queue,
		time.Duration(cfg.PropertyCacheTTLMinutes)*time.Minute,
		logger,
	)
	toolsets := assistant.NewToolsets(assistant.Dependencies{
		Properties:   propertyLookup,
		Homes:        homeRepo,
		Requests:     requestRepo,
		Matcher:      providerRepo,
		Notifier:     services.NewMatchNotifier(redisClients.Queue),
		ProviderData: providerRepo,
		Logger:       logger,
	})
	executor := assistant.NewExecutor(time.Duration(cfg.ToolTimeoutSeconds)*time.Second, 4, logger)
	orchestrator := assistant.NewOrchestrator(model, assistantRepo, toolsets, executor, logger, assistant.Options{
		HistoryWindow: cfg.HistoryWindow,
		MaxToolRounds: cfg.MaxToolRounds,
	})

	// ──── Initialize Handlers ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	assistantHandler := handlers.NewAssistantHandler(orchestrator, assistantRepo, logger)

	// ──── Step 6: Start Background Workers ────
	workerPool := worker.NewPool(redisClients.Queue, requestRepo, services.NewUpdatePublisher(redisClients.Queue), workerCount, logger)
	workerPool.Start()

	sessionStats := services.NewSessionStatsReporter(assistantRepo, redisClients.Queue, time.Duration(cfg.SessionIdleDays)*24*time.Hour, logger)
	sessionStats.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret, cfg.FrontendURL, logger)

	// ──── Step 8: Start HTTP Server ────
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.New(jwtAuth, assistantHandler, wsHub.HandleWebSocket, cfg.FrontendURL),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // a turn may take two model calls and a tool round
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		workerPool.Stop()
		sessionStats.Stop()
		wsHub.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HomeBase backend ready",
		"api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port),
		"ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port),
	)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	<-shutdownDone
	return nil
}

func newModelClient(cfg *config.Config, logger *slog.Logger) (assistant.ModelClient, func(), error) {
	if cfg.ModelProvider == "mock" {
		logger.Warn("using mock model client")
		return services.NewMockModel(), func() {}, nil
	}

	gemini, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.AssistantModel, cfg.GeminiConcurrentReqs, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini: %w", err)
	}
	logger.Info("gemini client initialized", "model", cfg.AssistantModel)
	return gemini, gemini.Close, nil
}
