package analytics

import (
	"context"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fiscalcli/internal/dataprocessing"
	"fiscalcli/internal/ingest"
)

// volatilityWindow is the rolling width for revenue-ratio volatility
const volatilityWindow = 3

// volatilityMinPeriods is the minimum observations inside the rolling
// window before a volatility value is produced.
const volatilityMinPeriods = 2

// FeatureBuilder turns the canonical indicator table into the annual
// feature matrix consumed by the regression, anomaly, and forecast models.
type FeatureBuilder struct {
	logger *slog.Logger
}

// NewFeatureBuilder creates a feature builder
func NewFeatureBuilder(logger *slog.Logger) *FeatureBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureBuilder{logger: logger}
}

// annualCell holds the mean indicator values of one entity-year. Fields are
// optional because entities report incomplete indicator sets.
type annualCell struct {
	deficit     *float64
	revenue     *float64
	taxRevenue  *float64
	expenditure *float64
	capex       *float64
	gdp         *float64
	debt        *float64
	growthPct   *float64
}

// Build aggregates canonical records to entity-year means, derives the
// engineered features, and drops rows missing any feature or the target
// (listwise deletion). Output is sorted by entity then year.
func (b *FeatureBuilder) Build(ctx context.Context, records []dataprocessing.CanonicalRecord) []FeatureRow {
	cells := b.aggregateAnnual(records)

	entities := make([]string, 0, len(cells))
	for entity := range cells {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var rows []FeatureRow
	incomplete := 0

	for _, entity := range entities {
		years := make([]int, 0, len(cells[entity]))
		for year := range cells[entity] {
			years = append(years, year)
		}
		sort.Ints(years)

		// Revenue ratio series in year order feeds the rolling volatility.
		revenueRatios := make([]*float64, len(years))
		for i, year := range years {
			cell := cells[entity][year]
			if cell.revenue != nil && cell.gdp != nil && *cell.gdp != 0 {
				v := *cell.revenue / *cell.gdp
				revenueRatios[i] = &v
			}
		}
		volatility := rollingStd(revenueRatios, volatilityWindow, volatilityMinPeriods)

		for i, year := range years {
			row, ok := buildRow(entity, year, cells[entity][year], volatility[i])
			if !ok {
				incomplete++
				continue
			}
			rows = append(rows, row)
		}
	}

	b.logger.InfoContext(ctx, "built feature matrix",
		slog.Int("entities", len(entities)),
		slog.Int("rows", len(rows)),
		slog.Int("dropped_incomplete", incomplete),
	)

	return rows
}

// aggregateAnnual averages each indicator per entity-year
func (b *FeatureBuilder) aggregateAnnual(records []dataprocessing.CanonicalRecord) map[string]map[int]*annualCell {
	type sumCount struct {
		sum   float64
		count int
	}
	type yearKey struct {
		entityID  string
		year      int
		indicator string
	}

	sums := make(map[yearKey]*sumCount)
	for _, rec := range records {
		key := yearKey{rec.EntityID, rec.Period.Year(), rec.Indicator}
		if sums[key] == nil {
			sums[key] = &sumCount{}
		}
		sums[key].sum += rec.ValueStandard
		sums[key].count++
	}

	cells := make(map[string]map[int]*annualCell)
	for key, sc := range sums {
		if cells[key.entityID] == nil {
			cells[key.entityID] = make(map[int]*annualCell)
		}
		if cells[key.entityID][key.year] == nil {
			cells[key.entityID][key.year] = &annualCell{}
		}

		mean := sc.sum / float64(sc.count)
		cell := cells[key.entityID][key.year]
		switch key.indicator {
		case ingest.IndicatorDeficit:
			cell.deficit = &mean
		case ingest.IndicatorRevenue:
			cell.revenue = &mean
		case ingest.IndicatorTaxRevenue:
			cell.taxRevenue = &mean
		case ingest.IndicatorExpenditure:
			cell.expenditure = &mean
		case ingest.IndicatorCapex:
			cell.capex = &mean
		case ingest.IndicatorNominalGDP:
			cell.gdp = &mean
		case ingest.IndicatorGovDebt:
			cell.debt = &mean
		case ingest.IndicatorGDPGrowth:
			cell.growthPct = &mean
		}
	}

	return cells
}

// buildRow derives one feature row; ok is false when any feature or the
// target is missing.
func buildRow(entity string, year int, cell *annualCell, volatility *float64) (FeatureRow, bool) {
	if cell.deficit == nil || cell.gdp == nil || *cell.gdp == 0 ||
		cell.debt == nil || cell.revenue == nil || *cell.revenue == 0 ||
		cell.expenditure == nil || cell.growthPct == nil || volatility == nil {
		return FeatureRow{}, false
	}

	capex := 0.0
	if cell.capex != nil {
		capex = *cell.capex
	}

	return FeatureRow{
		EntityID:          entity,
		Year:              year,
		DeficitPctGDP:     *cell.deficit / *cell.gdp,
		RevenueVolatility: *volatility,
		WageProxyPctGDP:   (*cell.expenditure - capex) / *cell.gdp,
		FiscalBurden:      *cell.debt / *cell.revenue,
		GDPGrowth:         *cell.growthPct / 100.0,
		DebtPctGDP:        *cell.debt / *cell.gdp,
	}, true
}

// rollingStd computes a trailing-window sample standard deviation over an
// optional-valued series. Positions with fewer than minPeriods non-nil
// values in their window stay nil.
func rollingStd(series []*float64, window, minPeriods int) []*float64 {
	out := make([]*float64, len(series))
	for i := range series {
		start := i - window + 1
		if start < 0 {
			start = 0
		}

		var vals []float64
		for _, v := range series[start : i+1] {
			if v != nil {
				vals = append(vals, *v)
			}
		}
		if len(vals) < minPeriods {
			continue
		}

		std := stat.StdDev(vals, nil)
		out[i] = &std
	}
	return out
}
