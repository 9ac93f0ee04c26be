package dataprocessing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalcli/internal/ingest"
)

const (
	testStaleHighFreq = 4320 * time.Hour  // 180 days
	testStaleLowFreq  = 17520 * time.Hour // 730 days
)

func newTestValidator() *Validator {
	return NewValidator(testStaleHighFreq, testStaleLowFreq, nil)
}

func canonRecord(entity, indicator string, period time.Time, value float64, freq string) CanonicalRecord {
	return CanonicalRecord{
		EntityID:      entity,
		Indicator:     indicator,
		Period:        period,
		Observed:      period,
		Frequency:     freq,
		Source:        "IMF",
		Unit:          "percent",
		UnitCategory:  UnitPercentage,
		ValueStandard: value,
	}
}

func TestValidator_NeverRemovesRecords(t *testing.T) {
	v := newTestValidator()

	records := []CanonicalRecord{
		canonRecord("NGA", "Inflation Rate", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 800, ingest.FreqMonthly),
		canonRecord("NGA", "Inflation Rate", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), -90, ingest.FreqMonthly),
	}

	annotated, issues := v.Validate(context.Background(), records)

	assert.Len(t, annotated, len(records))
	assert.NotEmpty(t, issues)
	// input slice is untouched
	assert.Empty(t, records[0].Flags)
}

func TestValidator_FlagsUnknownUnit(t *testing.T) {
	v := newTestValidator()

	rec := canonRecord("KEN", "Government Revenue", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 12, ingest.FreqYearly)
	rec.Unit = "sacks"
	rec.UnitCategory = UnitUnknown

	annotated, issues := v.Validate(context.Background(), []CanonicalRecord{rec})

	require.Len(t, annotated, 1)
	assert.True(t, annotated[0].HasFlag(FlagUnknownUnit))
	require.Len(t, issues, 1)
	assert.Equal(t, string(FlagUnknownUnit), issues[0].Issue)
}

func TestValidator_PlausibleRanges(t *testing.T) {
	tests := []struct {
		name      string
		indicator string
		value     float64
		wantFlag  bool
	}{
		{"inflation inside range", "Inflation Rate", 15, false},
		{"inflation above range", "Inflation Rate", 250, true},
		{"deflation below range", "Inflation Rate", -12, true},
		{"unemployment above range", "Unemployment Rate", 85, true},
		{"gdp growth inside range", "GDP Growth Rate", -5, false},
		{"gdp growth collapse", "GDP Growth Rate", -35, true},
		{"unbounded indicator ignored", "Government Debt", 9999, false},
	}

	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := canonRecord("GHA", tt.indicator, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), tt.value, ingest.FreqYearly)

			annotated, _ := v.Validate(context.Background(), []CanonicalRecord{rec})

			require.Len(t, annotated, 1)
			assert.Equal(t, tt.wantFlag, annotated[0].HasFlag(FlagRangeViolation))
		})
	}
}

func TestValidator_StaleSeries(t *testing.T) {
	v := newTestValidator()

	// ZWE's latest monthly observation lags a year behind the indicator-wide
	// maximum, past the 180-day high-frequency threshold. KEN is current.
	records := []CanonicalRecord{
		canonRecord("KEN", "Inflation Rate", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 7, ingest.FreqMonthly),
		canonRecord("ZWE", "Inflation Rate", time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), 90, ingest.FreqMonthly),
	}

	annotated, _ := v.Validate(context.Background(), records)

	assert.False(t, annotated[0].HasFlag(FlagStaleSeries))
	assert.True(t, annotated[1].HasFlag(FlagStaleSeries))
}

func TestValidator_StaleThresholdByFrequency(t *testing.T) {
	v := newTestValidator()

	// A one-year lag is stale for monthly data but fine for yearly data.
	records := []CanonicalRecord{
		canonRecord("KEN", "Government Debt", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 60, ingest.FreqYearly),
		canonRecord("ZWE", "Government Debt", time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), 80, ingest.FreqYearly),
	}

	annotated, issues := v.Validate(context.Background(), records)

	assert.False(t, annotated[1].HasFlag(FlagStaleSeries))
	assert.Empty(t, issues)
}

func TestValidator_TrendOutlier(t *testing.T) {
	v := newTestValidator()

	base := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	values := []float64{10, 11, 10.5, 11.5, 11, 60}

	records := make([]CanonicalRecord, 0, len(values))
	for i, val := range values {
		records = append(records, canonRecord("NGA", "Interest Rate", base.AddDate(0, i, 0), val, ingest.FreqMonthly))
	}

	annotated, _ := v.Validate(context.Background(), records)

	for i := 0; i < len(annotated)-1; i++ {
		assert.Falsef(t, annotated[i].HasFlag(FlagTrendOutlier), "record %d wrongly flagged", i)
	}
	assert.True(t, annotated[len(annotated)-1].HasFlag(FlagTrendOutlier))
}

func TestValidator_DebtToGDPCrossCheck(t *testing.T) {
	v := newTestValidator()

	period := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	debt := canonRecord("NGA", "Government Debt", period, 500, ingest.FreqYearly)
	debt.Unit = "billions"
	debt.UnitCategory = UnitCurrencyBillions

	gdp := canonRecord("NGA", "Nominal GDP", period, 100, ingest.FreqYearly)
	gdp.Unit = "billions"
	gdp.UnitCategory = UnitCurrencyBillions

	annotated, issues := v.Validate(context.Background(), []CanonicalRecord{debt, gdp})

	assert.True(t, annotated[0].HasFlag(FlagRangeViolation))
	assert.False(t, annotated[1].HasFlag(FlagRangeViolation))
	require.Len(t, issues, 1)
	assert.Equal(t, "Government Debt", issues[0].Indicator)
}
