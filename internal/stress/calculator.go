package stress

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"fiscalcli/internal/dataprocessing"
	"fiscalcli/internal/ingest"
)

// Calculator derives fiscal stress ratios from the canonical indicator
// table. Output is deterministic for a given input and contains no NaNs:
// ratios whose inputs are missing or whose denominator is zero are skipped
// for that entity-period.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator creates a stress ratio calculator
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// cellKey addresses one entity-period cell of the indicator table
type cellKey struct {
	entityID string
	period   time.Time
}

// Calculate computes all derivable ratios per (entity, period). Records are
// read-only input; the canonical table is never modified.
func (c *Calculator) Calculate(ctx context.Context, records []dataprocessing.CanonicalRecord) []RatioRecord {
	cells := make(map[cellKey]map[string]float64)
	for _, rec := range records {
		key := cellKey{rec.EntityID, rec.Period}
		if cells[key] == nil {
			cells[key] = make(map[string]float64)
		}
		cells[key][rec.Indicator] = rec.ValueStandard
	}

	ratios := make([]RatioRecord, 0, len(cells))
	for key, indicators := range cells {
		ratios = append(ratios, deriveCell(key, indicators)...)
	}

	sort.Slice(ratios, func(i, j int) bool {
		a, b := ratios[i], ratios[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if !a.Period.Equal(b.Period) {
			return a.Period.Before(b.Period)
		}
		return a.Ratio < b.Ratio
	})

	c.logger.InfoContext(ctx, "derived stress ratios",
		slog.Int("entity_periods", len(cells)),
		slog.Int("ratios", len(ratios)),
	)

	return ratios
}

// deriveCell computes the ratios available from one entity-period cell
func deriveCell(key cellKey, ind map[string]float64) []RatioRecord {
	var out []RatioRecord

	emit := func(name RatioName, value float64) {
		out = append(out, RatioRecord{
			EntityID: key.entityID,
			Period:   key.period,
			Ratio:    name,
			Value:    value,
		})
	}

	gdp, hasGDP := ind[ingest.IndicatorNominalGDP]
	revenue, hasRevenue := ind[ingest.IndicatorRevenue]
	debt, hasDebt := ind[ingest.IndicatorGovDebt]

	if hasGDP && gdp != 0 {
		if deficit, ok := ind[ingest.IndicatorDeficit]; ok {
			emit(RatioDeficitPctGDP, deficit/gdp)
		}
		if hasRevenue {
			emit(RatioRevenuePctGDP, revenue/gdp)
		}
		if tax, ok := ind[ingest.IndicatorTaxRevenue]; ok {
			emit(RatioTaxPctGDP, tax/gdp)
		}
		if hasDebt {
			emit(RatioDebtPctGDP, debt/gdp)
		}
		if expenditure, ok := ind[ingest.IndicatorExpenditure]; ok {
			// Capital expenditure defaults to zero when unreported; the
			// recurrent remainder proxies the wage bill.
			capex := ind[ingest.IndicatorCapex]
			emit(RatioWageProxyPctGDP, (expenditure-capex)/gdp)
		}
	}

	if hasRevenue && revenue != 0 {
		if hasDebt {
			emit(RatioFiscalBurden, debt/revenue)
		}
		if debtService, ok := ind[ingest.IndicatorDebtService]; ok {
			// Debt service as a percentage of revenue capacity
			emit(RatioDebtServicePressure, debtService/revenue*100)
		}
	}

	return out
}
