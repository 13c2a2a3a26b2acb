package pipeline

import (
	"fmt"
	"strings"
	"time"

	"terra-platform/internal/models"
)

// Default window of the MOPITT page
const (
	DefaultStartDate = "2010-01-01"
	DefaultEndDate   = "2024-12-31"
)

// Window is an inclusive calendar-date range
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow parses two YYYY-MM-DD strings into a Window.
// A start after end is valid and selects nothing.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseDate("start_date", start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseDate("end_date", end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// DefaultWindow returns 2010-01-01..2024-12-31
func DefaultWindow() Window {
	w, _ := NewWindow(DefaultStartDate, DefaultEndDate)
	return w
}

// Empty reports whether the window selects no dates
func (w Window) Empty() bool {
	return w.Start.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(models.DateLayout), w.End.Format(models.DateLayout))
}

// ParseDate parses an ISO calendar date. field names the input in the
// returned *models.ValidationError.
func ParseDate(field, value string) (time.Time, error) {
	date, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &models.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("invalid %s format, expected YYYY-MM-DD", field),
		}
	}
	return date, nil
}

// Filter returns the observations whose date lies in [start, end], keeping
// input order. Time of day is ignored. Observations without a parsed date
// are never selected. start after end yields an empty result.
func Filter(records []models.Observation, start, end time.Time) []models.Observation {
	start, end = calendarDay(start), calendarDay(end)

	filtered := make([]models.Observation, 0)
	if start.After(end) {
		return filtered
	}

	for _, r := range records {
		if r.InRange(start, end) {
			filtered = append(filtered, r)
		}
	}

	return filtered
}

// FilterWindow is Filter over a Window
func FilterWindow(records []models.Observation, w Window) []models.Observation {
	return Filter(records, w.Start, w.End)
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
