package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"terra-platform/internal/config"
	"terra-platform/internal/handlers"
	"terra-platform/internal/repository"
	"terra-platform/internal/services"
	"terra-platform/pkg/database"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("terra-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting terra platform API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"data_source": cfg.Data.Source,
	})

	metricsCollector := metrics.NewCollector("terra_platform", prometheus.DefaultRegisterer)

	defaultWindow, err := cfg.DefaultWindow()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid default window", logging.Fields{}, err)
	}

	// Select the observation source
	var source services.ObservationSource
	switch cfg.Data.Source {
	case config.SourceDatabase:
		db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
				"driver": cfg.Database.Driver,
			}, err)
		}
		defer db.Close()

		observationRepo := repository.NewObservationRepository(db, logger, metricsCollector)
		source = services.NewRepositorySource(observationRepo)
	default:
		fileSource, err := services.NewFileSource(ctx, cfg.Data.File, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load data file", logging.Fields{
				"file_path": cfg.Data.File,
			}, err)
		}
		source = fileSource
	}

	atmosphereService := services.NewAtmosphereService(source, logger, metricsCollector)
	atmosphereHandler := handlers.NewAtmosphereHandler(atmosphereService, defaultWindow, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID)

	atmosphereHandler.RegisterRoutes(router,
		handlers.RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger, metricsCollector),
	)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address":        server.Addr,
			"default_window": defaultWindow.String(),
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
