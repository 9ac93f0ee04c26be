package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	apperrors "fiscalcli/internal/errors"
	"fiscalcli/internal/ingest"
)

// PlausibleRange bounds the values an indicator may reasonably take
type PlausibleRange struct {
	Low  float64
	High float64
}

// plausibleRanges holds per-indicator validity bounds for percentage-style
// indicators. Values outside the range are flagged, never removed.
var plausibleRanges = map[string]PlausibleRange{
	"Inflation Rate":    {Low: -10, High: 200},
	"Food Inflation":    {Low: -20, High: 200},
	"Interest Rate":     {Low: 0, High: 100},
	"Unemployment Rate": {Low: 0, High: 70},
	"GDP Growth Rate":   {Low: -20, High: 50},
}

// maxDebtToGDPRatio is the upper plausibility bound for the derived
// debt-to-GDP ratio; anything above it is almost certainly a unit mismatch.
const maxDebtToGDPRatio = 4.0

// trendWindow is the rolling window used for trend-outlier detection
const trendWindow = 5

// trendZThreshold flags observations more than this many rolling standard
// deviations from the window mean.
const trendZThreshold = 3.0

// Validator attaches quality flags to canonical records. It never removes
// records and never returns an error; every input record comes back,
// annotated where a rule fires.
type Validator struct {
	staleHighFreq time.Duration
	staleLowFreq  time.Duration
	logger        *slog.Logger
}

// NewValidator builds a validator with per-frequency staleness thresholds
func NewValidator(staleHighFreq, staleLowFreq time.Duration, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		staleHighFreq: staleHighFreq,
		staleLowFreq:  staleLowFreq,
		logger:        logger,
	}
}

// Validate annotates the full record set and reports the issues found
func (v *Validator) Validate(ctx context.Context, records []CanonicalRecord) ([]CanonicalRecord, []*apperrors.DataQualityError) {
	annotated := make([]CanonicalRecord, len(records))
	copy(annotated, records)

	var issues []*apperrors.DataQualityError

	flag := func(i int, f QualityFlag, details string) {
		if !annotated[i].HasFlag(f) {
			annotated[i].Flags = append(annotated[i].Flags, f)
		}
		issues = append(issues, apperrors.NewDataQualityError(
			annotated[i].EntityID, annotated[i].Indicator, string(f), details))
	}

	// Unknown units and per-indicator plausible ranges.
	for i := range annotated {
		if annotated[i].UnitCategory == UnitUnknown {
			flag(i, FlagUnknownUnit, fmt.Sprintf("unit %q not mapped", annotated[i].Unit))
		}
		if r, ok := plausibleRanges[annotated[i].Indicator]; ok {
			val := annotated[i].ValueStandard
			if val < r.Low || val > r.High {
				flag(i, FlagRangeViolation, fmt.Sprintf("value %.2f outside [%.0f, %.0f]", val, r.Low, r.High))
			}
		}
	}

	series := v.groupSeries(annotated)

	v.flagStaleSeries(annotated, series, flag)
	v.flagTrendOutliers(annotated, series, flag)
	v.flagImplausibleDebtRatios(annotated, flag)

	v.logger.InfoContext(ctx, "validated canonical records",
		slog.Int("records", len(annotated)),
		slog.Int("issues", len(issues)),
	)

	return annotated, issues
}

// seriesKey identifies one entity-indicator time series
type seriesKey struct {
	entityID  string
	indicator string
}

// groupSeries returns record indices per series, sorted chronologically
func (v *Validator) groupSeries(records []CanonicalRecord) map[seriesKey][]int {
	series := make(map[seriesKey][]int)
	for i, rec := range records {
		key := seriesKey{rec.EntityID, rec.Indicator}
		series[key] = append(series[key], i)
	}
	for _, idxs := range series {
		sort.SliceStable(idxs, func(a, b int) bool {
			return records[idxs[a]].Period.Before(records[idxs[b]].Period)
		})
	}
	return series
}

// flagStaleSeries marks the latest observation of a series whose gap behind
// the indicator-wide maximum period exceeds the frequency threshold.
func (v *Validator) flagStaleSeries(records []CanonicalRecord, series map[seriesKey][]int, flag func(int, QualityFlag, string)) {
	indicatorMax := make(map[string]time.Time)
	for _, rec := range records {
		if rec.Period.After(indicatorMax[rec.Indicator]) {
			indicatorMax[rec.Indicator] = rec.Period
		}
	}

	for key, idxs := range series {
		last := idxs[len(idxs)-1]
		latest := records[last].Period
		maxPeriod := indicatorMax[key.indicator]

		threshold := v.staleLowFreq
		switch records[last].Frequency {
		case ingest.FreqMonthly, ingest.FreqQuarterly:
			threshold = v.staleHighFreq
		}

		if lag := maxPeriod.Sub(latest); lag > threshold {
			flag(last, FlagStaleSeries,
				fmt.Sprintf("latest observation lags %.0f days behind indicator maximum %s",
					lag.Hours()/24, maxPeriod.Format("2006-01-02")))
		}
	}
}

// flagTrendOutliers scores each observation against the preceding rolling
// window. Scoring against prior values only keeps a single spike from
// inflating its own baseline. This covers raw indicator jumps; derived
// stress ratios get their own pooled detector.
func (v *Validator) flagTrendOutliers(records []CanonicalRecord, series map[seriesKey][]int, flag func(int, QualityFlag, string)) {
	for _, idxs := range series {
		for pos := range idxs {
			start := pos - trendWindow
			if start < 0 {
				start = 0
			}
			window := idxs[start:pos]
			if len(window) < 3 {
				continue
			}

			mean, std := meanStd(records, window)
			if std == 0 {
				continue
			}
			z := (records[idxs[pos]].ValueStandard - mean) / std
			if math.Abs(z) > trendZThreshold {
				flag(idxs[pos], FlagTrendOutlier, fmt.Sprintf("rolling z-score %.2f exceeds %.1f", z, trendZThreshold))
			}
		}
	}
}

// flagImplausibleDebtRatios cross-checks debt against GDP per entity-period
func (v *Validator) flagImplausibleDebtRatios(records []CanonicalRecord, flag func(int, QualityFlag, string)) {
	gdp := make(map[GroupKey]float64)
	for _, rec := range records {
		if rec.Indicator == ingest.IndicatorNominalGDP && rec.ValueStandard != 0 {
			gdp[GroupKey{rec.EntityID, ingest.IndicatorNominalGDP, rec.Period}] = rec.ValueStandard
		}
	}

	for i, rec := range records {
		if rec.Indicator != ingest.IndicatorGovDebt {
			continue
		}
		gdpVal, ok := gdp[GroupKey{rec.EntityID, ingest.IndicatorNominalGDP, rec.Period}]
		if !ok {
			continue
		}
		ratio := rec.ValueStandard / gdpVal
		if ratio > maxDebtToGDPRatio {
			flag(i, FlagRangeViolation,
				fmt.Sprintf("debt-to-GDP ratio %.2f exceeds threshold %.1f", ratio, maxDebtToGDPRatio))
		}
	}
}

// meanStd computes population mean and standard deviation over the indexed
// records.
func meanStd(records []CanonicalRecord, idxs []int) (float64, float64) {
	values := make([]float64, len(idxs))
	for i, idx := range idxs {
		values[i] = records[idx].ValueStandard
	}
	return stat.Mean(values, nil), stat.PopStdDev(values, nil)
}
