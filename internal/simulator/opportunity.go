package simulator

import (
	"math"

	apperrors "fiscalcli/internal/errors"
)

// UnitType names one tangible social-spending unit
type UnitType string

const (
	UnitSchool      UnitType = "school"
	UnitHospital    UnitType = "hospital"
	UnitVaccineDose UnitType = "vaccine_dose"
	UnitTeacher     UnitType = "teacher"
)

// UnitCosts maps each unit type to its fixed USD cost: primary school
// construction, district hospital, single vaccine dose, annual teacher
// salary.
var UnitCosts = map[UnitType]float64{
	UnitSchool:      875_000,
	UnitHospital:    11_600_000,
	UnitVaccineDose: 50,
	UnitTeacher:     8_000,
}

// OpportunityCost converts a USD amount to the number of units it could
// fund, by floor division. Negative amounts are rejected.
func OpportunityCost(usd float64, unit UnitType) (int64, error) {
	cost, ok := UnitCosts[unit]
	if !ok {
		return 0, apperrors.NewCalculationError("unit_type", "unknown unit type "+string(unit))
	}
	if usd < 0 {
		return 0, apperrors.NewCalculationError("usd", "amount must be non-negative")
	}
	return int64(math.Floor(usd / cost)), nil
}

// OpportunityBreakdown converts a USD amount across every unit type
func OpportunityBreakdown(usd float64) (map[UnitType]int64, error) {
	out := make(map[UnitType]int64, len(UnitCosts))
	for unit := range UnitCosts {
		count, err := OpportunityCost(usd, unit)
		if err != nil {
			return nil, err
		}
		out[unit] = count
	}
	return out, nil
}
