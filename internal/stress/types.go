package stress

import "time"

// RatioName identifies one derived stress ratio
type RatioName string

// Derived ratio names. The *_pct_gdp ratios are decimal fractions of GDP
// despite the historical naming; debt_service_pressure is expressed in
// percent of revenue capacity.
const (
	RatioDeficitPctGDP       RatioName = "deficit_pct_gdp"
	RatioRevenuePctGDP       RatioName = "revenue_pct_gdp"
	RatioTaxPctGDP           RatioName = "tax_pct_gdp"
	RatioDebtPctGDP          RatioName = "debt_pct_gdp"
	RatioFiscalBurden        RatioName = "fiscal_burden"
	RatioWageProxyPctGDP     RatioName = "wage_proxy_pct_gdp"
	RatioDebtServicePressure RatioName = "debt_service_pressure"
)

// RatioRecord is one derived ratio value for an entity and period. The table
// is recomputed wholesale each run; records are never mutated in place.
type RatioRecord struct {
	EntityID string    `json:"entity_id"`
	Period   time.Time `json:"period"`
	Ratio    RatioName `json:"ratio"`
	Value    float64   `json:"value"`
}
