package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"terra-platform/internal/models"
)

// Column layout of a data line:
// date,year,month,<unused>,<unused>,co_ppm,aod
const (
	fieldDelimiter = ","

	colDate  = 0
	colYear  = 1
	colMonth = 2
	colCO    = 5
	colAOD   = 6
)

// Parse converts the raw text of a data file into observations.
// The first line is a header and is discarded; blank lines are skipped.
// Parse never fails: unparsable numbers become NaN, unparsable dates leave
// Observation.Date zero, and short lines yield the missing fields as such.
// Output order follows input line order.
func Parse(raw string) []models.Observation {
	lines := strings.Split(raw, "\n")
	if len(lines) <= 1 {
		return []models.Observation{}
	}

	observations := make([]models.Observation, 0, len(lines)-1)
	for i, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		observations = append(observations, parseLine(line, i+2))
	}

	return observations
}

// parseLine parses a single data line; lineNo is 1-based
func parseLine(line string, lineNo int) models.Observation {
	fields := strings.Split(line, fieldDelimiter)

	obs := models.Observation{
		Year:  parseInt(field(fields, colYear)),
		Month: parseInt(field(fields, colMonth)),
		COPPM: parseFloat(field(fields, colCO)),
		AOD:   parseFloat(field(fields, colAOD)),
		Line:  lineNo,
	}

	// The date column is authoritative for year/month
	if date, err := time.Parse(models.DateLayout, field(fields, colDate)); err == nil {
		obs.Date = date
		obs.Dated = true
		obs.Year = date.Year()
		obs.Month = int(date.Month())
	}

	return obs
}

func field(fields []string, idx int) string {
	if idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
