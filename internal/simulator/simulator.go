package simulator

import (
	"math"

	apperrors "fiscalcli/internal/errors"
)

// Baseline assumptions used when an entity has no observed lending terms
const (
	DefaultRate            = 0.05
	DefaultMaturityPeriods = 10
)

// ProjectionHorizonYears is the fixed horizon for the projected
// debt-to-GDP ratio.
const ProjectionHorizonYears = 5

// ScenarioInput describes one restructuring scenario. Rate and
// MaturityPeriods are optional: absent values fall back to the documented
// defaults and the result is tagged AssumptionsDefaulted.
type ScenarioInput struct {
	Principal         float64  `json:"principal" validate:"gte=0"`
	Rate              *float64 `json:"rate" validate:"omitempty,gte=0,lt=1"`
	MaturityPeriods   *int     `json:"maturity_periods" validate:"omitempty,gt=0,lte=50"`
	RateReduction     float64  `json:"rate_reduction" validate:"gte=0,lt=1"`
	MaturityExtension int      `json:"maturity_extension" validate:"gte=0,lte=50"`
	HaircutFraction   float64  `json:"haircut_fraction" validate:"gte=0,lte=1"`
	GDPUSD            float64  `json:"gdp_usd,omitempty" validate:"gte=0"`
}

// ScenarioResult is the ephemeral outcome of one simulator call. It is
// returned synchronously and never persisted.
type ScenarioResult struct {
	CurrentPayment          float64  `json:"current_payment"`
	NewPayment              float64  `json:"new_payment"`
	NewPrincipal            float64  `json:"new_principal"`
	FiscalSpaceFreed        float64  `json:"fiscal_space_freed"`
	ProjectedRatioAtHorizon *float64 `json:"projected_ratio_at_horizon,omitempty"`
	AssumptionsDefaulted    bool     `json:"assumptions_defaulted"`
}

// AnnuityPayment computes the fixed per-period payment for a loan using the
// closed-form annuity formula. A zero rate amortizes linearly.
func AnnuityPayment(principal, rate float64, periods int) float64 {
	if periods == 0 {
		return principal
	}
	if rate == 0 {
		return principal / float64(periods)
	}

	compound := math.Pow(1+rate, float64(periods))
	return principal * (rate * compound) / (compound - 1)
}

// Simulate applies the relief terms and computes the restructured payment
// schedule. Pure and safe for concurrent use; invalid parameter
// combinations return a CalculationError and nothing else happens.
func Simulate(input ScenarioInput) (ScenarioResult, error) {
	if input.Principal < 0 {
		return ScenarioResult{}, apperrors.NewCalculationError("principal", "principal must be non-negative")
	}

	rate := DefaultRate
	periods := DefaultMaturityPeriods
	defaulted := false

	if input.Rate != nil {
		rate = *input.Rate
	} else {
		defaulted = true
	}
	if input.MaturityPeriods != nil {
		periods = *input.MaturityPeriods
	} else {
		defaulted = true
	}

	if periods <= 0 {
		return ScenarioResult{}, apperrors.NewCalculationError("maturity_periods", "baseline maturity must be positive")
	}

	newPeriods := periods + input.MaturityExtension
	if newPeriods <= 0 {
		return ScenarioResult{}, apperrors.NewCalculationError("maturity_extension", "resulting maturity must be positive")
	}

	newPrincipal := input.Principal * (1 - input.HaircutFraction)
	if newPrincipal < 0 {
		return ScenarioResult{}, apperrors.NewCalculationError("haircut_fraction", "haircut produces negative principal")
	}

	newRate := math.Max(rate-input.RateReduction, 0)

	currentPayment := AnnuityPayment(input.Principal, rate, periods)
	newPayment := AnnuityPayment(newPrincipal, newRate, newPeriods)

	result := ScenarioResult{
		CurrentPayment:       currentPayment,
		NewPayment:           newPayment,
		NewPrincipal:         newPrincipal,
		FiscalSpaceFreed:     currentPayment - newPayment, // deliberately unclamped
		AssumptionsDefaulted: defaulted,
	}

	if input.GDPUSD > 0 {
		ratio := projectedDebtToGDP(newPrincipal, newRate, newPayment, input.GDPUSD, newPeriods)
		result.ProjectedRatioAtHorizon = &ratio
	}

	return result, nil
}

// projectedDebtToGDP amortizes the restructured balance forward to the
// projection horizon and expresses the remainder as a percentage of GDP.
func projectedDebtToGDP(principal, rate, payment, gdp float64, periods int) float64 {
	horizon := ProjectionHorizonYears
	if periods < horizon {
		horizon = periods
	}

	balance := principal
	for year := 0; year < horizon; year++ {
		balance = balance*(1+rate) - payment
		if balance < 0 {
			balance = 0
			break
		}
	}

	return balance / gdp * 100
}
