package pipeline

import (
	"encoding/json"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terra-platform/internal/models"
)

func TestAggregateMonthly(t *testing.T) {
	series := AggregateMonthly(Parse(sampleData))
	require.Len(t, series, 2)

	assert.Equal(t, "2020-01", series[0].Period)
	assert.InDelta(t, 2.0, series[0].COAverage, 1e-12)
	assert.InDelta(t, 0.2, series[0].AODAverage, 1e-12)
	assert.Equal(t, 2, series[0].Samples)

	assert.Equal(t, "2020-02", series[1].Period)
	assert.InDelta(t, 5.0, series[1].COAverage, 1e-12)
	assert.InDelta(t, 0.5, series[1].AODAverage, 1e-12)
	assert.Equal(t, 1, series[1].Samples)
}

func TestAggregateMonthly_SortedByPeriod(t *testing.T) {
	records := []models.Observation{
		obs(day(2021, 10, 3), 1, 0.1),
		obs(day(2009, 2, 3), 1, 0.1),
		obs(day(2021, 2, 3), 1, 0.1),
		obs(day(2015, 12, 3), 1, 0.1),
		obs(day(2021, 10, 9), 1, 0.1),
	}

	series := AggregateMonthly(records)
	require.Len(t, series, 4)

	periods := make([]string, len(series))
	for i, row := range series {
		periods[i] = row.Period
	}
	assert.True(t, sort.StringsAreSorted(periods), "periods %v not sorted", periods)
	assert.Equal(t, []string{"2009-02", "2015-12", "2021-02", "2021-10"}, periods)
}

func TestAggregateMonthly_ExcludesNonFinite(t *testing.T) {
	records := []models.Observation{
		obs(day(2020, 1, 1), 2, 0.2),
		obs(day(2020, 1, 2), math.NaN(), 0.4),
		obs(day(2020, 1, 3), 4, math.Inf(1)),
		obs(day(2020, 2, 1), math.NaN(), math.NaN()),
	}

	series := AggregateMonthly(records)
	require.Len(t, series, 2)

	assert.InDelta(t, 3.0, series[0].COAverage, 1e-12)
	assert.InDelta(t, 0.3, series[0].AODAverage, 1e-12)
	assert.Equal(t, 3, series[0].Samples)

	assert.True(t, math.IsNaN(series[1].COAverage), "month without finite CO has no average")
	assert.True(t, math.IsNaN(series[1].AODAverage))
	assert.Equal(t, 1, series[1].Samples)
}

func TestAggregate_LargeFiniteValuesDoNotOverflow(t *testing.T) {
	records := []models.Observation{
		obs(day(2020, 1, 1), 1e308, 0.1),
		obs(day(2020, 1, 2), 1e308, 0.3),
	}

	series := AggregateMonthly(records)
	require.Len(t, series, 1)
	assert.Equal(t, 1e308, series[0].COAverage)

	stats := Summarize(records)
	assert.Equal(t, 1e308, stats.AverageCO)
	assert.Equal(t, 1e308, stats.MaxCO)
	assert.InDelta(t, 0.2, stats.AverageAOD, 1e-12)

	_, err := json.Marshal(stats)
	assert.NoError(t, err)
}

func TestAggregateMonthly_SkipsRecordsWithoutPeriod(t *testing.T) {
	records := []models.Observation{
		{Year: 2020, Month: 0, COPPM: 1, AOD: 0.1},
		{Year: 2020, Month: 13, COPPM: 1, AOD: 0.1},
		obs(day(2020, 5, 1), 1, 0.1),
	}

	series := AggregateMonthly(records)
	require.Len(t, series, 1)
	assert.Equal(t, "2020-05", series[0].Period)
}

func TestAggregateMonthly_Empty(t *testing.T) {
	series := AggregateMonthly(nil)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestAggregateMonthly_Idempotent(t *testing.T) {
	records := Parse(sampleData)
	w := DefaultWindow()

	first := AggregateMonthly(FilterWindow(records, w))
	second := AggregateMonthly(FilterWindow(records, w))
	assert.Equal(t, first, second)
}

func TestSummarize(t *testing.T) {
	stats := Summarize(Parse(sampleData))

	assert.InDelta(t, 3.0, stats.AverageCO, 1e-12)
	assert.InDelta(t, 5.0, stats.MaxCO, 1e-12)
	assert.InDelta(t, 0.3, stats.AverageAOD, 1e-12)
	assert.InDelta(t, 0.5, stats.MaxAOD, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize([]models.Observation{})
	assert.Equal(t, models.SummaryStatistics{AverageCO: 0, MaxCO: 0, AverageAOD: 0, MaxAOD: 0}, stats)
	assert.True(t, stats.IsZero())
}

func TestSummarize_NonFinite(t *testing.T) {
	tests := []struct {
		name    string
		records []models.Observation
		want    models.SummaryStatistics
	}{
		{
			name: "malformed row excluded",
			records: []models.Observation{
				obs(day(2020, 1, 1), 1, 0.5),
				obs(day(2020, 1, 2), math.NaN(), math.NaN()),
				obs(day(2020, 1, 3), 3, 0.1),
			},
			want: models.SummaryStatistics{AverageCO: 2, MaxCO: 3, AverageAOD: 0.3, MaxAOD: 0.5},
		},
		{
			name: "negative values keep true maximum",
			records: []models.Observation{
				obs(day(2020, 1, 1), -2, -0.5),
				obs(day(2020, 1, 2), -1, -0.1),
			},
			want: models.SummaryStatistics{AverageCO: -1.5, MaxCO: -1, AverageAOD: -0.3, MaxAOD: -0.1},
		},
		{
			name: "only CO missing everywhere",
			records: []models.Observation{
				obs(day(2020, 1, 1), math.NaN(), 0.2),
			},
			want: models.SummaryStatistics{AverageAOD: 0.2, MaxAOD: 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.records)
			assert.InDelta(t, tt.want.AverageCO, got.AverageCO, 1e-12)
			assert.InDelta(t, tt.want.MaxCO, got.MaxCO, 1e-12)
			assert.InDelta(t, tt.want.AverageAOD, got.AverageAOD, 1e-12)
			assert.InDelta(t, tt.want.MaxAOD, got.MaxAOD, 1e-12)
		})
	}
}
