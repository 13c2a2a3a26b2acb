package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"terra-platform/internal/models"
	"terra-platform/pkg/database"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

// ObservationRepository provides data access for raw Terra observations.
// Monthly series and summaries are never stored; they are derived per request.
type ObservationRepository interface {
	CreateObservationsBatch(ctx context.Context, sourceFile string, observations []models.Observation) error
	GetObservations(ctx context.Context, filter ObservationFilter) ([]models.Observation, int, error)
	CountObservations(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ObservationFilter defines filters for querying observations.
// A zero Limit returns every matching row.
type ObservationFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// observationRow mirrors a mopitt_observations row
type observationRow struct {
	ID              int64           `db:"id"`
	ObservationDate string          `db:"observation_date"`
	Year            int             `db:"year"`
	Month           int             `db:"month"`
	COPPM           sql.NullFloat64 `db:"co_ppm"`
	AOD             sql.NullFloat64 `db:"aod"`
	SourceLine      int             `db:"source_line"`
}

func (r observationRow) toModel() (models.Observation, error) {
	// PostgreSQL DATE scans as an RFC 3339 timestamp; the date is its first 10 bytes
	raw := r.ObservationDate
	if len(raw) > len(models.DateLayout) {
		raw = raw[:len(models.DateLayout)]
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return models.Observation{}, fmt.Errorf("invalid stored date %q for row %d: %w", r.ObservationDate, r.ID, err)
	}

	return models.Observation{
		Date:  date,
		Dated: true,
		Year:  r.Year,
		Month: r.Month,
		COPPM: nullToNaN(r.COPPM),
		AOD:   nullToNaN(r.AOD),
		Line:  r.SourceLine,
	}, nil
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// nanToNull stores non-finite measurements as NULL
func nanToNull(v float64) sql.NullFloat64 {
	if !models.IsFinite(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

const selectObservations = `
	SELECT id, observation_date, year, month, co_ppm, aod, source_line
	FROM mopitt_observations
`

// observationRepository implements ObservationRepository
type observationRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateObservationsBatch upserts observations keyed by source file and line
// in a single transaction. Rows sharing a date are all kept; re-ingesting a
// file replaces its own rows. Observations without a date or a valid period
// are rejected.
func (r *observationRepository) CreateObservationsBatch(ctx context.Context, sourceFile string, observations []models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(observations),
			"source_file": sourceFile,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO mopitt_observations (
			observation_date, year, month, co_ppm, aod, source_file, source_line
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_file, source_line) DO UPDATE SET
			observation_date = EXCLUDED.observation_date,
			year = EXCLUDED.year,
			month = EXCLUDED.month,
			co_ppm = EXCLUDED.co_ppm,
			aod = EXCLUDED.aod
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if !obs.HasDate() || !obs.HasPeriod() {
			return fmt.Errorf("observation at line %d has no usable date", obs.Line)
		}

		_, err := stmt.ExecContext(ctx,
			obs.Date.Format(models.DateLayout),
			obs.Year,
			obs.Month,
			nanToNull(obs.COPPM),
			nanToNull(obs.AOD),
			sourceFile,
			obs.Line,
		)
		if err != nil {
			r.metrics.RecordDBError("exec_error")
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(observations)))

	return nil
}

// GetObservations retrieves observations in ascending date order with the
// total count of matching rows
func (r *observationRepository) GetObservations(ctx context.Context, filter ObservationFilter) ([]models.Observation, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if filter.StartDate != nil {
		where += " AND observation_date >= ?"
		args = append(args, filter.StartDate.Format(models.DateLayout))
	}

	if filter.EndDate != nil {
		where += " AND observation_date <= ?"
		args = append(args, filter.EndDate.Format(models.DateLayout))
	}

	// Get total count
	var totalCount int
	err := r.db.GetContext(ctx, "count_observations", &totalCount,
		"SELECT COUNT(*) FROM mopitt_observations"+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count observations: %w", err)
	}

	query := selectObservations + where + " ORDER BY observation_date ASC, source_file ASC, source_line ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	var rows []observationRow
	err = r.db.SelectContext(ctx, "get_observations", &rows, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get observations: %w", err)
	}

	observations := make([]models.Observation, 0, len(rows))
	for _, row := range rows {
		obs, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		observations = append(observations, obs)
	}

	return observations, totalCount, nil
}

// CountObservations returns the number of stored observations
func (r *observationRepository) CountObservations(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, "count_all_observations", &count, "SELECT COUNT(*) FROM mopitt_observations"); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}

// DeleteAll removes every stored observation
func (r *observationRepository) DeleteAll(ctx context.Context) error {
	result, err := r.db.ExecContext(ctx, "delete_observations", "DELETE FROM mopitt_observations")
	if err != nil {
		return fmt.Errorf("failed to delete observations: %w", err)
	}

	affected, _ := result.RowsAffected()
	r.logger.Info(ctx, "[REPO_DELETE_ALL] Observations deleted", logging.Fields{
		"rows": affected,
	})

	return nil
}

// HealthCheck performs a repository health check
func (r *observationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
