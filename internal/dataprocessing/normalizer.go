package dataprocessing

import (
	"context"
	"log/slog"
	"strings"

	"fiscalcli/internal/ingest"
)

// unitSpec describes how a source unit maps onto the canonical scale
type unitSpec struct {
	category   UnitCategory
	multiplier float64
}

// unitMap is the fixed unit lookup applied before any comparison. Currency
// magnitudes standardize to billions; percentages keep their numeric value
// and additionally expose the decimal fraction.
var unitMap = map[string]unitSpec{
	"billion":    {UnitCurrencyBillions, 1.0},
	"billions":   {UnitCurrencyBillions, 1.0},
	"million":    {UnitCurrencyBillions, 1e-3},
	"millions":   {UnitCurrencyBillions, 1e-3},
	"trillion":   {UnitCurrencyBillions, 1e3},
	"trillions":  {UnitCurrencyBillions, 1e3},
	"percent":    {UnitPercentage, 1.0},
	"%":          {UnitPercentage, 1.0},
	"percentage": {UnitPercentage, 1.0},
	"points":     {UnitIndexPoints, 1.0},
	"point":      {UnitIndexPoints, 1.0},
	"persons":    {UnitPopulationCount, 1.0},
	"people":     {UnitPopulationCount, 1.0},
	"usd":        {UnitCurrencyUSD, 1.0},
}

// Normalize maps raw records onto the canonical typed schema with
// standardized units. Unknown units convert with multiplier 1 and the
// "unknown" category; the validator flags them later rather than dropping
// data at this stage.
func Normalize(ctx context.Context, records []ingest.RawRecord) []CanonicalRecord {
	logger := slog.Default()

	canonical := make([]CanonicalRecord, 0, len(records))
	unknownUnits := 0

	for _, raw := range records {
		spec, ok := unitMap[strings.ToLower(strings.TrimSpace(raw.Unit))]
		if !ok {
			spec = unitSpec{category: UnitUnknown, multiplier: 1.0}
			unknownUnits++
		}

		rec := CanonicalRecord{
			EntityID:      raw.EntityID,
			Indicator:     raw.Indicator,
			Period:        ingest.AlignPeriod(raw.Period, raw.Frequency),
			Observed:      raw.Period,
			Frequency:     raw.Frequency,
			Source:        raw.Source,
			Unit:          raw.Unit,
			UnitCategory:  spec.category,
			ValueStandard: raw.Amount * spec.multiplier,
		}

		if spec.category == UnitPercentage {
			fraction := raw.Amount / 100
			rec.ValueFraction = &fraction
		}

		canonical = append(canonical, rec)
	}

	logger.InfoContext(ctx, "normalized raw records",
		slog.Int("records", len(canonical)),
		slog.Int("unknown_units", unknownUnits),
	)

	return canonical
}
