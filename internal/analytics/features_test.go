package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalcli/internal/dataprocessing"
	"fiscalcli/internal/ingest"
)

// fullYear emits every indicator needed for a complete feature row
func fullYear(entity string, year int, gdp, revenue float64) []dataprocessing.CanonicalRecord {
	period := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
	mk := func(indicator string, value float64) dataprocessing.CanonicalRecord {
		return dataprocessing.CanonicalRecord{
			EntityID:      entity,
			Indicator:     indicator,
			Period:        period,
			Observed:      period,
			Frequency:     ingest.FreqYearly,
			Source:        "IMF",
			ValueStandard: value,
		}
	}
	return []dataprocessing.CanonicalRecord{
		mk(ingest.IndicatorDeficit, -0.05*gdp),
		mk(ingest.IndicatorRevenue, revenue),
		mk(ingest.IndicatorExpenditure, 0.25*gdp),
		mk(ingest.IndicatorCapex, 0.05*gdp),
		mk(ingest.IndicatorNominalGDP, gdp),
		mk(ingest.IndicatorGovDebt, 0.6*gdp),
		mk(ingest.IndicatorGDPGrowth, 4.0),
	}
}

func TestFeatureBuilder_DerivesRow(t *testing.T) {
	b := NewFeatureBuilder(nil)

	var records []dataprocessing.CanonicalRecord
	records = append(records, fullYear("NGA", 2020, 100, 15)...)
	records = append(records, fullYear("NGA", 2021, 105, 17)...)
	records = append(records, fullYear("NGA", 2022, 110, 16)...)

	rows := b.Build(context.Background(), records)

	// Year one has a single revenue ratio in its window, below min periods.
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "NGA", first.EntityID)
	assert.Equal(t, 2021, first.Year)
	assert.InDelta(t, -0.05, first.DeficitPctGDP, 1e-9)
	assert.InDelta(t, 0.20, first.WageProxyPctGDP, 1e-9)
	assert.InDelta(t, 0.6, first.DebtPctGDP, 1e-9)
	assert.InDelta(t, 0.6*105/17, first.FiscalBurden, 1e-9)
	assert.InDelta(t, 0.04, first.GDPGrowth, 1e-9)
	assert.Greater(t, first.RevenueVolatility, 0.0)
}

func TestFeatureBuilder_ListwiseDeletion(t *testing.T) {
	b := NewFeatureBuilder(nil)

	var records []dataprocessing.CanonicalRecord
	records = append(records, fullYear("KEN", 2020, 90, 20)...)
	records = append(records, fullYear("KEN", 2021, 95, 21)...)

	// 2022 is missing GDP growth, so its row must be dropped even though
	// the revenue ratio still feeds later volatility windows.
	partial := fullYear("KEN", 2022, 100, 22)
	for _, rec := range partial {
		if rec.Indicator != ingest.IndicatorGDPGrowth {
			records = append(records, rec)
		}
	}
	records = append(records, fullYear("KEN", 2023, 104, 23)...)

	rows := b.Build(context.Background(), records)

	years := make([]int, 0, len(rows))
	for _, row := range rows {
		years = append(years, row.Year)
	}
	assert.Equal(t, []int{2021, 2023}, years)
}

func TestFeatureBuilder_MissingCapexDefaultsToZero(t *testing.T) {
	b := NewFeatureBuilder(nil)

	var records []dataprocessing.CanonicalRecord
	for year := 2020; year <= 2022; year++ {
		for _, rec := range fullYear("GHA", year, 80, 18) {
			if rec.Indicator == ingest.IndicatorCapex {
				continue
			}
			records = append(records, rec)
		}
	}

	rows := b.Build(context.Background(), records)

	require.NotEmpty(t, rows)
	// Without capex the whole expenditure ratio becomes the wage proxy.
	assert.InDelta(t, 0.25, rows[0].WageProxyPctGDP, 1e-9)
}

func TestRollingStd_MinPeriods(t *testing.T) {
	v1, v2, v3 := 1.0, 2.0, 3.0
	series := []*float64{&v1, nil, &v2, &v3}

	out := rollingStd(series, 3, 2)

	assert.Nil(t, out[0])  // single value
	assert.Nil(t, out[1])  // still a single non-nil in window
	require.NotNil(t, out[2])
	assert.InDelta(t, 0.7071067811865476, *out[2], 1e-12) // std{1,2}
	require.NotNil(t, out[3])
	assert.InDelta(t, 0.7071067811865476, *out[3], 1e-12) // std{2,3}
}
