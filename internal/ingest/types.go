package ingest

import (
	"time"
)

// RawRecord is a single observation as supplied by the ingestion boundary.
// Records are immutable once parsed; all cleaning happens downstream on
// canonical copies.
type RawRecord struct {
	EntityID   string    `json:"entity_id"`
	EntityName string    `json:"entity_name"`
	Indicator  string    `json:"indicator"`
	Period     time.Time `json:"period"`
	Frequency  string    `json:"frequency"`
	Amount     float64   `json:"amount"`
	Unit       string    `json:"unit"`
	Source     string    `json:"source"`
}

// Frequency labels as they appear in the source datasets
const (
	FreqMonthly   = "Monthly"
	FreqQuarterly = "Quarterly"
	FreqBiannual  = "Biannual"
	FreqYearly    = "Yearly"
)

// Indicator names as they appear in the source datasets. Downstream
// calculators key on these, so ingestion must not rename them.
const (
	IndicatorDeficit     = "Budget Deficit/Surplus"
	IndicatorRevenue     = "Revenue"
	IndicatorTaxRevenue  = "Tax Revenue"
	IndicatorExpenditure = "Expenditure"
	IndicatorCapex       = "Capital Expenditure"
	IndicatorNominalGDP  = "Nominal GDP"
	IndicatorGovDebt     = "Government Debt"
	IndicatorGDPGrowth   = "GDP Growth Rate"
	IndicatorDebtService = "Debt Service"
)

// AlignPeriod snaps a timestamp to the end of its reporting period so that
// observations of the same period compare equal regardless of the day the
// source stamped them with.
func AlignPeriod(t time.Time, frequency string) time.Time {
	if t.IsZero() {
		return t
	}

	switch frequency {
	case FreqMonthly:
		return endOfMonth(t)
	case FreqQuarterly:
		quarterEndMonth := ((int(t.Month())-1)/3)*3 + 3
		return endOfMonth(time.Date(t.Year(), time.Month(quarterEndMonth), 1, 0, 0, 0, 0, t.Location()))
	case FreqBiannual:
		if t.Month() <= time.June {
			return time.Date(t.Year(), time.June, 30, 0, 0, 0, 0, t.Location())
		}
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
	case FreqYearly:
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}
