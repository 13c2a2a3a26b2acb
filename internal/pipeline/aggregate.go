package pipeline

import (
	"maps"
	"math"
	"slices"

	"terra-platform/internal/models"
)

// accumulator tracks the finite values of one quantity.
// Non-finite values are dropped so a single malformed row cannot poison a mean.
// The mean is kept incrementally so large finite inputs cannot overflow a sum.
type accumulator struct {
	avg   float64
	max   float64
	count int
}

func (a *accumulator) add(v float64) {
	if !models.IsFinite(v) {
		return
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.count++
	a.avg += (v - a.avg) / float64(a.count)
}

// mean returns NaN when no finite value was added
func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return math.NaN()
	}
	return a.avg
}

func (a *accumulator) meanOrZero() float64 {
	if a.count == 0 {
		return 0
	}
	return a.avg
}

func (a *accumulator) maxOrZero() float64 {
	if a.count == 0 {
		return 0
	}
	return a.max
}

type monthlyBucket struct {
	co      accumulator
	aod     accumulator
	samples int
}

// AggregateMonthly groups observations by calendar month and averages CO
// and AOD per month. The result has one row per distinct month, sorted
// ascending by period key. Observations without a valid year/month are
// skipped.
func AggregateMonthly(records []models.Observation) []models.MonthlyAverage {
	buckets := make(map[string]*monthlyBucket)
	for _, r := range records {
		if !r.HasPeriod() {
			continue
		}

		key := r.PeriodKey()
		b, ok := buckets[key]
		if !ok {
			b = &monthlyBucket{}
			buckets[key] = b
		}
		b.co.add(r.COPPM)
		b.aod.add(r.AOD)
		b.samples++
	}

	series := make([]models.MonthlyAverage, 0, len(buckets))
	for _, key := range slices.Sorted(maps.Keys(buckets)) {
		b := buckets[key]
		series = append(series, models.MonthlyAverage{
			Period:     key,
			COAverage:  b.co.mean(),
			AODAverage: b.aod.mean(),
			Samples:    b.samples,
		})
	}

	return series
}

// Summarize computes mean and maximum of CO and AOD over all finite values.
// An empty input, or a quantity with no finite value, yields zeros.
func Summarize(records []models.Observation) models.SummaryStatistics {
	var co, aod accumulator
	for _, r := range records {
		co.add(r.COPPM)
		aod.add(r.AOD)
	}

	return models.SummaryStatistics{
		AverageCO:  co.meanOrZero(),
		MaxCO:      co.maxOrZero(),
		AverageAOD: aod.meanOrZero(),
		MaxAOD:     aod.maxOrZero(),
	}
}
