package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalcli/internal/ingest"
	"fiscalcli/internal/stress"
)

// debtSeries builds a yearly debt-ratio series for one entity
func debtSeries(entity string, startYear int, values []float64) []stress.RatioRecord {
	records := make([]stress.RatioRecord, 0, len(values))
	for i, v := range values {
		records = append(records, stress.RatioRecord{
			EntityID: entity,
			Period:   time.Date(startYear+i, 12, 31, 0, 0, 0, 0, time.UTC),
			Ratio:    stress.RatioDebtPctGDP,
			Value:    v,
		})
	}
	return records
}

var forecastMetrics = []stress.RatioName{stress.RatioDebtPctGDP, stress.RatioDeficitPctGDP}

func TestForecaster_HorizonConsistency(t *testing.T) {
	f := NewForecaster(forecastMetrics, 8, 3, nil)

	values := []float64{0.50, 0.53, 0.51, 0.56, 0.55, 0.60, 0.58, 0.63, 0.64, 0.61}
	ratios := debtSeries("NGA", 2012, values)

	rows, fitErrs := f.Forecast(context.Background(), ratios)

	assert.Empty(t, fitErrs)
	require.Len(t, rows, 3)

	for i, row := range rows {
		assert.Equal(t, "NGA", row.EntityID)
		assert.Equal(t, string(stress.RatioDebtPctGDP), row.Metric)
		assert.Equal(t, StatusOK, row.Status)
		assert.LessOrEqual(t, row.Lower, row.Point)
		assert.LessOrEqual(t, row.Point, row.Upper)
		assert.Equal(t, 2022+i, row.Period.Year())
		assert.Equal(t, time.December, row.Period.Month())
	}

	// Uncertainty accumulates with the horizon.
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Upper - rows[i-1].Lower
		curr := rows[i].Upper - rows[i].Lower
		assert.GreaterOrEqual(t, curr, prev)
	}
}

func TestForecaster_ShortSeriesReportedNotDropped(t *testing.T) {
	f := NewForecaster(forecastMetrics, 8, 3, nil)

	ratios := debtSeries("KEN", 2018, []float64{0.5, 0.52, 0.51, 0.55})

	rows, fitErrs := f.Forecast(context.Background(), ratios)

	assert.Empty(t, rows)
	require.Len(t, fitErrs, 1)
	assert.Equal(t, "KEN", fitErrs[0].EntityID)
	assert.Equal(t, string(stress.RatioDebtPctGDP), fitErrs[0].Metric)
	assert.Contains(t, fitErrs[0].Reason, "insufficient_data")
	assert.Contains(t, fitErrs[0].Reason, "4 observations, need 8")
}

func TestForecaster_MonthEndPeriodsStayAligned(t *testing.T) {
	f := NewForecaster(forecastMetrics, 8, 3, nil)

	// Monthly series ending on Jan 31: naive month arithmetic from the
	// 31st would land the first forecast in March instead of February.
	values := []float64{0.50, 0.53, 0.51, 0.56, 0.55, 0.60, 0.58, 0.63, 0.64, 0.61}
	records := make([]stress.RatioRecord, 0, len(values))
	start := time.Date(2021, time.April, 30, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		period := ingest.AlignPeriod(start.AddDate(0, i, 0), ingest.FreqMonthly)
		records = append(records, stress.RatioRecord{
			EntityID: "NGA",
			Period:   period,
			Ratio:    stress.RatioDebtPctGDP,
			Value:    v,
		})
	}

	rows, fitErrs := f.Forecast(context.Background(), records)

	assert.Empty(t, fitErrs)
	require.Len(t, rows, 3)
	assert.Equal(t, time.Date(2022, time.February, 28, 0, 0, 0, 0, time.UTC), rows[0].Period)
	assert.Equal(t, time.Date(2022, time.March, 31, 0, 0, 0, 0, time.UTC), rows[1].Period)
	assert.Equal(t, time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC), rows[2].Period)
}

func TestForecaster_DegenerateSeriesFailsIsolated(t *testing.T) {
	f := NewForecaster(forecastMetrics, 8, 3, nil)

	// ZWE grows by exactly the same amount every year, so the differenced
	// series has zero variance. NGA is healthy and must still forecast.
	ratios := debtSeries("ZWE", 2012, []float64{0.10, 0.20, 0.30, 0.40, 0.50, 0.60, 0.70, 0.80, 0.90})
	ratios = append(ratios, debtSeries("NGA", 2012, []float64{0.50, 0.53, 0.51, 0.56, 0.55, 0.60, 0.58, 0.63, 0.64})...)

	rows, fitErrs := f.Forecast(context.Background(), ratios)

	require.Len(t, fitErrs, 1)
	assert.Equal(t, "ZWE", fitErrs[0].EntityID)

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "NGA", row.EntityID)
	}
}

func TestForecaster_CancelledContextFails(t *testing.T) {
	f := NewForecaster(forecastMetrics, 8, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ratios := debtSeries("NGA", 2012, []float64{0.50, 0.53, 0.51, 0.56, 0.55, 0.60, 0.58, 0.63, 0.64})

	rows, fitErrs := f.Forecast(ctx, ratios)

	assert.Empty(t, rows)
	require.Len(t, fitErrs, 1)
	assert.Contains(t, fitErrs[0].Reason, "timed out")
}

func TestFitARIMA111_TracksAutocorrelatedSeries(t *testing.T) {
	// AR(1) on the differences with phi = 0.6 and no noise: the fitted
	// phi must land near the generator and the one-step forecast follows
	// the recursion.
	values := []float64{1.0}
	diff := 0.5
	for i := 0; i < 14; i++ {
		values = append(values, values[len(values)-1]+diff)
		diff *= 0.6
	}

	fit, err := fitARIMA111(context.Background(), values)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, fit.phi, 0.01)
	assert.InDelta(t, 0.0, fit.theta, 0.01)

	onestep := fit.phi*fit.lastDiff + fit.theta*fit.lastResid
	assert.InDelta(t, 0.6*fit.lastDiff, onestep, 1e-5)
}
