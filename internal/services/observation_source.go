package services

import (
	"context"
	"fmt"
	"os"

	"terra-platform/internal/models"
	"terra-platform/internal/pipeline"
	"terra-platform/internal/repository"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

// ObservationSource supplies the full, unfiltered observation sequence
type ObservationSource interface {
	Observations(ctx context.Context) ([]models.Observation, error)
	HealthCheck(ctx context.Context) error
}

// FileSource serves observations parsed once from a CSV file
type FileSource struct {
	path         string
	observations []models.Observation
}

// NewFileSource reads and parses path. The file is not read again.
func NewFileSource(ctx context.Context, path string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*FileSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	timer := metricsCollector.StageTimer("parse")
	observations := pipeline.Parse(string(content))
	timer.ObserveDuration()

	malformed := 0
	for _, obs := range observations {
		if !obs.HasDate() || !obs.IsComplete() {
			malformed++
		}
	}
	metricsCollector.MalformedRowsTotal.Add(float64(malformed))

	logger.Info(ctx, "[SOURCE_LOADED] Observation file parsed", logging.Fields{
		"file_path":      path,
		"observations":   len(observations),
		"malformed_rows": malformed,
	})

	return &FileSource{path: path, observations: observations}, nil
}

// NewFileSourceFromObservations wraps an already parsed sequence
func NewFileSourceFromObservations(path string, observations []models.Observation) *FileSource {
	return &FileSource{path: path, observations: observations}
}

// Observations returns a copy of the parsed sequence
func (s *FileSource) Observations(ctx context.Context) ([]models.Observation, error) {
	out := make([]models.Observation, len(s.observations))
	copy(out, s.observations)
	return out, nil
}

// HealthCheck reports healthy once the file has been parsed
func (s *FileSource) HealthCheck(ctx context.Context) error {
	return nil
}

// Path returns the file the source was loaded from
func (s *FileSource) Path() string {
	return s.path
}

// RepositorySource reads observations from the SQL store on every call
type RepositorySource struct {
	repo repository.ObservationRepository
}

// NewRepositorySource creates a store-backed source
func NewRepositorySource(repo repository.ObservationRepository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

func (s *RepositorySource) Observations(ctx context.Context) ([]models.Observation, error) {
	observations, _, err := s.repo.GetObservations(ctx, repository.ObservationFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	return observations, nil
}

func (s *RepositorySource) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
