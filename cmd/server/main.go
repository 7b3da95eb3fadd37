package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashoverflow/internal/api"
	"cashoverflow/internal/auth"
	"cashoverflow/internal/config"
	"cashoverflow/internal/engine"
	"cashoverflow/internal/events"
	"cashoverflow/internal/repository"
	"cashoverflow/internal/repository/memory"
	"cashoverflow/internal/repository/postgres"
	"cashoverflow/pkg/metrics"

	"github.com/joho/godotenv"
)

const (
	appName = "cashoverflow"
)

func main() {
	godotenv.Load()
	cfg := config.New()

	logger := setupLogger()
	logger.Info("Starting application",
		slog.String("name", appName),
		slog.String("storage", cfg.StorageDriver))

	accountRepo, userRepo, requestRepo, err := setupStorage(cfg, logger)
	if err != nil {
		logger.Error("Storage setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	publisher := setupPublisher(cfg, logger)

	var eventSink engine.EventPublisher
	if publisher != nil {
		eventSink = publisher
	}

	transferEngine := engine.New(accountRepo, requestRepo, eventSink, logger)
	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	metricsCollector := metrics.NewCollector(logger)

	apiHandler := api.NewAPIHandler(transferEngine, accountRepo, authService, metricsCollector, logger)
	metricsServer := metricsCollector.StartMetricsServer(cfg.MetricsAddress)
	httpServer := startHTTPServer(cfg, apiHandler, logger)

	waitForShutdown(cfg, logger, httpServer, metricsServer, metricsCollector, publisher)
	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func setupStorage(cfg *config.Config, logger *slog.Logger) (
	repository.AccountRepository,
	repository.UserRepository,
	repository.TransferRequestRepository,
	error,
) {
	switch cfg.StorageDriver {
	case "memory":
		return memory.NewAccountRepository(), memory.NewUserRepository(), memory.NewTransferRequestRepository(), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}

		logger.Info("Connected to postgres")
		return postgres.NewAccountRepository(db), postgres.NewUserRepository(db), postgres.NewTransferRequestRepository(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func setupPublisher(cfg *config.Config, logger *slog.Logger) *events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("Event publishing disabled")
		return nil
	}

	publisher, err := events.Connect(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Error("Event broker connection failed, continuing without events",
			slog.String("error", err.Error()))
		return nil
	}

	return publisher
}

func startHTTPServer(cfg *config.Config, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	cfg *config.Config,
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	metricsCollector *metrics.Collector,
	publisher *events.Publisher,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsCollector.Shutdown(ctx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("Event publisher close failed", slog.String("error", err.Error()))
		}
	}
}
