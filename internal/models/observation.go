package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date format used by the source files and the API
const DateLayout = "2006-01-02"

// Observation represents one MOPITT/MODIS sample from the Terra data file.
// Missing or unparsable measurements are stored as NaN, never as zero.
type Observation struct {
	Date time.Time
	// Dated is set when the date column parsed; Date is meaningless otherwise
	Dated bool
	Year  int
	Month int
	COPPM float64
	AOD   float64
	// Line is the 1-based line number in the source text (0 when unknown)
	Line int
}

// HasDate reports whether the date column parsed
func (o Observation) HasDate() bool {
	return o.Dated
}

// InRange reports whether the observation date lies in [start, end].
// Observations without a date are never in range.
func (o Observation) InRange(start, end time.Time) bool {
	if !o.HasDate() {
		return false
	}
	return !o.Date.Before(start) && !o.Date.After(end)
}

// HasPeriod reports whether Year/Month form a usable grouping key
func (o Observation) HasPeriod() bool {
	return o.Year > 0 && o.Year <= 9999 && o.Month >= 1 && o.Month <= 12
}

// PeriodKey returns the YYYY-MM grouping key of the observation
func (o Observation) PeriodKey() string {
	return PeriodKey(o.Year, o.Month)
}

// IsComplete reports whether both measurements are finite
func (o Observation) IsComplete() bool {
	return IsFinite(o.COPPM) && IsFinite(o.AOD)
}

type observationJSON struct {
	Date  string   `json:"date,omitempty"`
	Year  int      `json:"year"`
	Month int      `json:"month"`
	COPPM *float64 `json:"co_ppm"`
	AOD   *float64 `json:"aod"`
}

// MarshalJSON encodes non-finite measurements as null
func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{
		Year:  o.Year,
		Month: o.Month,
		COPPM: finitePtr(o.COPPM),
		AOD:   finitePtr(o.AOD),
	}
	if o.HasDate() {
		out.Date = o.Date.Format(DateLayout)
	}
	return json.Marshal(out)
}

// MonthlyAverage is one row of the monthly series.
// An average is NaN when the month had no finite value for that quantity.
type MonthlyAverage struct {
	Period     string
	COAverage  float64
	AODAverage float64
	// Samples is the number of observations that fell in the month
	Samples int
}

type monthlyAverageJSON struct {
	Period     string   `json:"period"`
	COAverage  *float64 `json:"co_avg"`
	AODAverage *float64 `json:"aod_avg"`
	Samples    int      `json:"samples"`
}

// MarshalJSON encodes NaN averages as null
func (m MonthlyAverage) MarshalJSON() ([]byte, error) {
	return json.Marshal(monthlyAverageJSON{
		Period:     m.Period,
		COAverage:  finitePtr(m.COAverage),
		AODAverage: finitePtr(m.AODAverage),
		Samples:    m.Samples,
	})
}

// SummaryStatistics holds whole-range statistics for a filtered set.
// The zero value is the "no data" sentinel.
type SummaryStatistics struct {
	AverageCO  float64 `json:"avg_co"`
	MaxCO      float64 `json:"max_co"`
	AverageAOD float64 `json:"avg_aod"`
	MaxAOD     float64 `json:"max_aod"`
}

// IsZero reports whether s is the empty-range sentinel
func (s SummaryStatistics) IsZero() bool {
	return s == SummaryStatistics{}
}

// PeriodKey formats a zero-padded YYYY-MM key
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v float64) *float64 {
	if !IsFinite(v) {
		return nil
	}
	return &v
}

// ValidationError represents invalid caller input at the API boundary
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
