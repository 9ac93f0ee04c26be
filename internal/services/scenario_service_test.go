package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fiscalcli/internal/errors"
	"fiscalcli/internal/simulator"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestScenarioService_EvaluateBasicRelief(t *testing.T) {
	svc := NewScenarioService(nil)

	resp, err := svc.Evaluate(context.Background(), simulator.ScenarioInput{
		Principal:       100_000_000,
		Rate:            floatPtr(0.05),
		MaturityPeriods: intPtr(10),
		RateReduction:   0.02,
	})
	require.NoError(t, err)

	assert.Greater(t, resp.Result.FiscalSpaceFreed, 0.0)
	assert.False(t, resp.Result.AssumptionsDefaulted)

	require.NotNil(t, resp.OpportunityCost)
	for _, unit := range []simulator.UnitType{
		simulator.UnitSchool, simulator.UnitHospital,
		simulator.UnitVaccineDose, simulator.UnitTeacher,
	} {
		assert.Contains(t, resp.OpportunityCost, unit)
	}
}

func TestScenarioService_NoReliefNoBreakdown(t *testing.T) {
	svc := NewScenarioService(nil)

	resp, err := svc.Evaluate(context.Background(), simulator.ScenarioInput{
		Principal:       50_000_000,
		Rate:            floatPtr(0.05),
		MaturityPeriods: intPtr(10),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, resp.Result.FiscalSpaceFreed, 1e-9)
	assert.Nil(t, resp.OpportunityCost)
}

func TestScenarioService_ValidationFailureNamesField(t *testing.T) {
	svc := NewScenarioService(nil)

	tests := []struct {
		name      string
		input     simulator.ScenarioInput
		wantField string
	}{
		{
			name:      "negative principal",
			input:     simulator.ScenarioInput{Principal: -1},
			wantField: "principal",
		},
		{
			name: "rate reduction above one",
			input: simulator.ScenarioInput{
				Principal:     1000,
				RateReduction: 1.5,
			},
			wantField: "rate_reduction",
		},
		{
			name: "haircut above one",
			input: simulator.ScenarioInput{
				Principal:       1000,
				HaircutFraction: 1.1,
			},
			wantField: "haircut_fraction",
		},
		{
			name: "maturity extension beyond cap",
			input: simulator.ScenarioInput{
				Principal:         1000,
				MaturityExtension: 51,
			},
			wantField: "maturity_extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Evaluate(context.Background(), tt.input)
			require.Error(t, err)

			var calcErr *apperrors.CalculationError
			require.ErrorAs(t, err, &calcErr)
			assert.Equal(t, tt.wantField, calcErr.Field)
		})
	}
}

func TestScenarioService_DefaultsApplied(t *testing.T) {
	svc := NewScenarioService(nil)

	resp, err := svc.Evaluate(context.Background(), simulator.ScenarioInput{
		Principal:     10_000_000,
		RateReduction: 0.01,
	})
	require.NoError(t, err)
	assert.True(t, resp.Result.AssumptionsDefaulted)
}
