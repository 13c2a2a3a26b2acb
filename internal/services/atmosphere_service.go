package services

import (
	"context"
	"fmt"
	"time"

	"terra-platform/internal/models"
	"terra-platform/internal/pipeline"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

// SeriesResult is the monthly series and summary for one date window
type SeriesResult struct {
	StartDate  string                   `json:"start_date"`
	EndDate    string                   `json:"end_date"`
	DataPoints int                      `json:"data_points"`
	Months     int                      `json:"months"`
	Monthly    []models.MonthlyAverage  `json:"monthly"`
	Summary    models.SummaryStatistics `json:"summary"`
}

// AtmosphereService derives the MOPITT series from an observation source
type AtmosphereService struct {
	source  ObservationSource
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAtmosphereService creates a new atmosphere service
func NewAtmosphereService(source ObservationSource, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AtmosphereService {
	return &AtmosphereService{
		source:  source,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Series filters the source to window and aggregates it. Nothing is cached;
// each call recomputes from the source.
func (s *AtmosphereService) Series(ctx context.Context, window pipeline.Window) (*SeriesResult, error) {
	startTime := time.Now()

	observations, err := s.source.Observations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	timer := s.metrics.StageTimer("filter")
	filtered := pipeline.FilterWindow(observations, window)
	timer.ObserveDuration()

	timer = s.metrics.StageTimer("aggregate")
	monthly := pipeline.AggregateMonthly(filtered)
	timer.ObserveDuration()

	timer = s.metrics.StageTimer("summarize")
	summary := pipeline.Summarize(filtered)
	timer.ObserveDuration()

	s.metrics.RecordWindow(len(filtered), len(monthly))

	s.logger.Debug(ctx, "[SERIES_COMPUTED] Series computed", logging.Fields{
		"window":      window.String(),
		"source_size": len(observations),
		"data_points": len(filtered),
		"months":      len(monthly),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})

	return &SeriesResult{
		StartDate:  window.Start.Format(models.DateLayout),
		EndDate:    window.End.Format(models.DateLayout),
		DataPoints: len(filtered),
		Months:     len(monthly),
		Monthly:    monthly,
		Summary:    summary,
	}, nil
}

// Observations returns the raw observations inside window, in source order
func (s *AtmosphereService) Observations(ctx context.Context, window pipeline.Window) ([]models.Observation, error) {
	observations, err := s.source.Observations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	return pipeline.FilterWindow(observations, window), nil
}

// HealthCheck checks the underlying source
func (s *AtmosphereService) HealthCheck(ctx context.Context) error {
	return s.source.HealthCheck(ctx)
}
