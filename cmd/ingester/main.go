package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"terra-platform/internal/config"
	"terra-platform/internal/repository"
	"terra-platform/internal/services"
	"terra-platform/migrations"
	"terra-platform/pkg/database"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

const version = "1.0.0"

type options struct {
	dataDir   string
	files     []string
	batchSize int
	reset     bool
}

func main() {
	// Parse command-line flags
	dataDir := flag.String("data-dir", "./data", "Directory containing Terra CSV files")
	fileList := flag.String("files", "", "Comma-separated CSV files to ingest instead of -data-dir")
	batchSize := flag.Int("batch-size", 1000, "Number of records to insert in each batch")
	schedule := flag.String("schedule", "", "Cron expression for repeated ingestion (empty runs once)")
	reset := flag.Bool("reset", false, "Delete stored observations before each run")
	migrate := flag.Bool("migrate", false, "Apply the schema migration before ingesting")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("terra-ingester", version, logging.ParseLevel(cfg.Logging.Level))

	opts := options{
		dataDir:   *dataDir,
		batchSize: *batchSize,
		reset:     *reset,
	}
	if *fileList != "" {
		for _, f := range strings.Split(*fileList, ",") {
			if f = strings.TrimSpace(f); f != "" {
				opts.files = append(opts.files, f)
			}
		}
		opts.files = services.SortedFiles(opts.files)
	}

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting Terra data ingestion", logging.Fields{
		"version":    version,
		"data_dir":   opts.dataDir,
		"files":      len(opts.files),
		"batch_size": opts.batchSize,
		"schedule":   *schedule,
		"driver":     cfg.Database.Driver,
	})

	metricsCollector := metrics.NewCollector("terra_ingester", prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.DatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if *migrate {
		if err := db.Migrate(ctx, migrations.FS, "up"); err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Migration failed", logging.Fields{}, err)
		}
	}

	observationRepo := repository.NewObservationRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(observationRepo, logger, metricsCollector)

	if *schedule == "" {
		result, err := run(ctx, ingestionService, observationRepo, opts)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
		}
		printResult(result)
		return
	}

	// Scheduled mode: run now, then on every tick until interrupted
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := func() {
		result, err := run(ctx, ingestionService, observationRepo, opts)
		if err != nil {
			logger.Error(ctx, "[INGESTION_ERROR] Scheduled ingestion failed", logging.Fields{
				"schedule": *schedule,
			}, err)
			return
		}
		printResult(result)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(*schedule, job); err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Invalid schedule", logging.Fields{
			"schedule": *schedule,
		}, err)
	}

	job()
	scheduler.Start()

	<-ctx.Done()
	logger.Info(context.Background(), "[INGESTER_SHUTDOWN] Waiting for running ingestion to finish", logging.Fields{})
	<-scheduler.Stop().Done()
	logger.Info(context.Background(), "[INGESTER_COMPLETE] Scheduler stopped", logging.Fields{})
}

func run(ctx context.Context, svc *services.IngestionService, repo repository.ObservationRepository, opts options) (*services.IngestionResult, error) {
	if opts.reset {
		if err := repo.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset observations: %w", err)
		}
	}

	if len(opts.files) > 0 {
		return svc.IngestFiles(ctx, opts.files, opts.batchSize)
	}
	return svc.IngestDirectory(ctx, opts.dataDir, opts.batchSize)
}

func printResult(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Failed Files:       %d\n", result.FailedFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Stored Records:     %d\n", result.SuccessfulRecords)
	fmt.Printf("Malformed Records:  %d\n", result.MalformedRecords)
	fmt.Printf("Skipped Records:    %d\n", result.SkippedRecords)
	if result.StoredObservations >= 0 {
		fmt.Printf("Rows In Store:      %d\n", result.StoredObservations)
	}
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
