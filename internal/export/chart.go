package export

import (
	"math"

	"github.com/guptarohit/asciigraph"

	"terra-platform/internal/models"
)

// COSeries returns the monthly CO averages in period order
func COSeries(monthly []models.MonthlyAverage) []float64 {
	out := make([]float64, len(monthly))
	for i, m := range monthly {
		out[i] = m.COAverage
	}
	return out
}

// AODSeries returns the monthly AOD averages in period order
func AODSeries(monthly []models.MonthlyAverage) []float64 {
	out := make([]float64, len(monthly))
	for i, m := range monthly {
		out[i] = m.AODAverage
	}
	return out
}

// Chart renders values as an ASCII line chart. NaN months are drawn as gaps.
// An empty string is returned when there is nothing finite to plot.
func Chart(values []float64, height, width int, caption string) string {
	finite := 0
	for _, v := range values {
		if models.IsFinite(v) {
			finite++
		}
	}
	if finite == 0 {
		return ""
	}

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Caption(caption),
		asciigraph.Precision(3),
	}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}

	return asciigraph.Plot(normalize(values), opts...)
}

// normalize replaces infinities with NaN so they plot as gaps
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
