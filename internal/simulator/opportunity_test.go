package simulator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpportunityCost_ReferenceBreakdown(t *testing.T) {
	breakdown, err := OpportunityBreakdown(1_000_000_000)
	require.NoError(t, err)

	assert.Equal(t, int64(1_142), breakdown[UnitSchool])
	assert.Equal(t, int64(86), breakdown[UnitHospital])
	assert.Equal(t, int64(20_000_000), breakdown[UnitVaccineDose])
	assert.Equal(t, int64(125_000), breakdown[UnitTeacher])
}

func TestOpportunityCost_FloorsNeverRoundUp(t *testing.T) {
	// One dollar short of the next school stays at the current count.
	count, err := OpportunityCost(875_000*3-1, UnitSchool)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = OpportunityCost(875_000*3, UnitSchool)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestOpportunityCost_MatchesFloorForAllUnits(t *testing.T) {
	amounts := []float64{0, 49.99, 50, 7_999, 8_000, 12_345_678.90}

	for _, usd := range amounts {
		for unit, cost := range UnitCosts {
			count, err := OpportunityCost(usd, unit)
			require.NoError(t, err)
			assert.Equal(t, int64(math.Floor(usd/cost)), count)
		}
	}
}

func TestOpportunityCost_Rejections(t *testing.T) {
	_, err := OpportunityCost(-1, UnitSchool)
	assert.Error(t, err)

	_, err = OpportunityCost(100, UnitType("prison"))
	assert.Error(t, err)
}
