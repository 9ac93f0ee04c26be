package analytics

import "time"

// FitStatus is the machine-readable outcome of a model fit
type FitStatus string

const (
	StatusOK               FitStatus = "ok"
	StatusInsufficientData FitStatus = "insufficient_data"
	StatusFitFailed        FitStatus = "fit_failed"
)

// Feature names used as regression columns and result keys
const (
	FeatureRevenueVolatility = "revenue_volatility"
	FeatureWageProxyPctGDP   = "wage_proxy_pct_gdp"
	FeatureFiscalBurden      = "fiscal_burden"
	FeatureGDPGrowth         = "gdp_growth"
)

// FeatureRow is one complete entity-year observation of the engineered
// feature matrix. Rows with any missing input are removed before modeling,
// so every field here is populated.
type FeatureRow struct {
	EntityID          string  `json:"entity_id"`
	Year              int     `json:"year"`
	DeficitPctGDP     float64 `json:"deficit_pct_gdp"`
	RevenueVolatility float64 `json:"revenue_volatility"`
	WageProxyPctGDP   float64 `json:"wage_proxy_pct_gdp"`
	FiscalBurden      float64 `json:"fiscal_burden"`
	GDPGrowth         float64 `json:"gdp_growth"`
	DebtPctGDP        float64 `json:"debt_pct_gdp"`
}

// RegressionResult reports one entity's driver fit. Betas and PValues are
// keyed by feature name; both are empty unless Status is ok.
type RegressionResult struct {
	EntityID   string             `json:"entity_id"`
	Betas      map[string]float64 `json:"betas,omitempty"`
	PValues    map[string]float64 `json:"p_values,omitempty"`
	RSquared   float64            `json:"r_squared"`
	NObs       int                `json:"n_obs"`
	Status     FitStatus          `json:"status"`
	Diagnostic string             `json:"diagnostic,omitempty"`
}

// AnomalyFlag marks one entity-period metric value whose pooled z-score
// magnitude met the detection threshold.
type AnomalyFlag struct {
	EntityID string    `json:"entity_id"`
	Period   time.Time `json:"period"`
	Metric   string    `json:"metric"`
	Value    float64   `json:"value"`
	ZScore   float64   `json:"z_score"`
}

// ForecastRecord is one step-ahead forecast with 95% bounds. Lower <= Point
// <= Upper holds for every emitted record.
type ForecastRecord struct {
	EntityID string    `json:"entity_id"`
	Metric   string    `json:"metric"`
	Period   time.Time `json:"period"`
	Point    float64   `json:"point"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
	Status   FitStatus `json:"status"`
}
