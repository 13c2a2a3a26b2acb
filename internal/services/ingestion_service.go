package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"terra-platform/internal/models"
	"terra-platform/internal/pipeline"
	"terra-platform/internal/repository"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

// maxParallelFiles bounds concurrent file reads during ingestion
const maxParallelFiles = 4

// IngestionService loads Terra CSV files into the observation store
type IngestionService struct {
	repo    repository.ObservationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles         int
	TotalRecords       int
	SuccessfulRecords  int
	MalformedRecords   int
	SkippedRecords     int
	FailedFiles        int
	// StoredObservations is the store's row count after the run (-1 if unknown)
	StoredObservations int
	Duration           time.Duration
	Errors             []string
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	FilePath          string
	TotalRecords      int
	SuccessfulRecords int
	// MalformedRecords are stored with NULL measurements
	MalformedRecords int
	// SkippedRecords have no usable date and cannot be stored
	SkippedRecords int
}

type parsedFile struct {
	path         string
	observations []models.Observation
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.ObservationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every *.csv file in dataDir
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	return s.IngestFiles(ctx, files, batchSize)
}

// IngestFiles reads and parses files concurrently, then writes them to the
// store in batches, one file at a time in the order given. A file that
// cannot be read or written is reported in the result and does not stop the run.
func (s *IngestionService) IngestFiles(ctx context.Context, files []string, batchSize int) (*IngestionResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"file_count": len(files),
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	parsed := make([]*parsedFile, len(files))
	readErrs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pf, err := s.readFile(path)
			if err != nil {
				readErrs[i] = err
				return nil
			}
			parsed[i] = pf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion cancelled: %w", err)
	}

	for i, path := range files {
		if readErrs[i] != nil {
			s.recordFileError(ctx, result, path, "read_error", readErrs[i])
			continue
		}

		fileResult, err := s.storeFile(ctx, parsed[i], batchSize)

		// committed batches stay stored even when a later one fails
		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.MalformedRecords += fileResult.MalformedRecords
		result.SkippedRecords += fileResult.SkippedRecords

		if err != nil {
			s.recordFileError(ctx, result, path, "store_error", err)
			continue
		}

		s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
			"file_path":          path,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"malformed_records":  fileResult.MalformedRecords,
			"skipped_records":    fileResult.SkippedRecords,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.StoredObservations = -1
	if stored, err := s.repo.CountObservations(ctx); err != nil {
		s.logger.Warn(ctx, "[INGEST_COUNT_FAILED] Could not count stored observations", logging.Fields{
			"error": err.Error(),
		})
	} else {
		result.StoredObservations = stored
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":         result.TotalFiles,
		"failed_files":        result.FailedFiles,
		"total_records":       result.TotalRecords,
		"successful_records":  result.SuccessfulRecords,
		"malformed_records":   result.MalformedRecords,
		"skipped_records":     result.SkippedRecords,
		"stored_observations": result.StoredObservations,
		"duration_seconds":    result.Duration.Seconds(),
		"error_count":         len(result.Errors),
		"stage":               "COMPLETE",
	})

	return result, nil
}

// readFile loads and parses one data file
func (s *IngestionService) readFile(path string) (*parsedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	timer := s.metrics.StageTimer("parse")
	observations := pipeline.Parse(string(content))
	timer.ObserveDuration()

	return &parsedFile{path: path, observations: observations}, nil
}

// storeFile writes parsed observations in batches. On error the returned
// result still counts the rows of batches already committed.
func (s *IngestionService) storeFile(ctx context.Context, pf *parsedFile, batchSize int) (*FileIngestionResult, error) {
	sourceFile := filepath.Base(pf.path)
	result := &FileIngestionResult{FilePath: pf.path}
	log := s.logger.WithFields(logging.Fields{"file_path": pf.path})

	batch := make([]models.Observation, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.CreateObservationsBatch(ctx, sourceFile, batch); err != nil {
			return fmt.Errorf("failed to insert batch ending at line %d: %w", batch[len(batch)-1].Line, err)
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, obs := range pf.observations {
		result.TotalRecords++

		if !obs.HasDate() || !obs.HasPeriod() {
			result.SkippedRecords++
			s.metrics.MalformedRowsTotal.Inc()
			s.metrics.RecordIngestionError("invalid_date")
			log.Warn(ctx, "[INGEST_ROW_SKIPPED] Row has no usable date", logging.Fields{
				"line": obs.Line,
			})
			continue
		}

		if !obs.IsComplete() {
			result.MalformedRecords++
			s.metrics.MalformedRowsTotal.Inc()
			log.Debug(ctx, "[INGEST_ROW_MALFORMED] Row stored without a finite measurement", logging.Fields{
				"line": obs.Line,
			})
		}

		batch = append(batch, obs)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}

func (s *IngestionService) recordFileError(ctx context.Context, result *IngestionResult, path, errorType string, err error) {
	result.FailedFiles++
	result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", path, err))
	s.metrics.RecordIngestionError(errorType)
	s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
		"file_path": path,
		"stage":     "FILE_PROCESSING",
	}, err)
}

// SortedFiles returns a sorted copy of paths so runs are deterministic
func SortedFiles(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}
