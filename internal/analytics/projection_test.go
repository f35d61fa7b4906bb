package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityscope/server/internal/models"
)

func projectionFixture() (models.Proposal, []models.UnitMixEntry) {
	cost := 1_000_000.0
	proposal := models.Proposal{ID: 5, TotalUnits: 20, LotSizeSqft: 10000, EstimatedCost: &cost}
	mix := []models.UnitMixEntry{
		{UnitType: models.UnitStudio, Count: 20, ProjectedRent: 2000},
	}
	return proposal, mix
}

func TestProject_YearOneRevenueAndROI(t *testing.T) {
	proposal, mix := projectionFixture()

	rows, err := Project(proposal, mix, 1, DefaultProjectionConfig())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	y1 := rows[0]
	assert.Equal(t, 1, y1.Year)
	// 20 units x 2000/mo x 12 = 480000
	assert.True(t, y1.Revenue.Equal(decimal.NewFromInt(480000)), "got %s", y1.Revenue)
	// 35% expense ratio -> 168000 expenses, 312000 net
	assert.True(t, y1.Expenses.Equal(decimal.NewFromInt(168000)), "got %s", y1.Expenses)
	assert.True(t, y1.NetIncome.Equal(decimal.NewFromInt(312000)), "got %s", y1.NetIncome)
	// ROI = 312000 / 1000000 * 100
	assert.True(t, y1.CumulativeROI.Equal(decimal.NewFromFloat(31.2)), "got %s", y1.CumulativeROI)
}

func TestProject_GrowthRatesApplied(t *testing.T) {
	proposal, mix := projectionFixture()

	rows, err := Project(proposal, mix, 3, DefaultProjectionConfig())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Revenue grows 3%/yr, expenses 2%/yr.
	assert.True(t, rows[1].Revenue.Equal(decimal.NewFromFloat(494400)), "got %s", rows[1].Revenue)
	assert.True(t, rows[1].Expenses.Equal(decimal.NewFromFloat(171360)), "got %s", rows[1].Expenses)
	assert.True(t, rows[2].Revenue.Equal(decimal.NewFromFloat(509232)), "got %s", rows[2].Revenue)

	// Cumulative ROI is monotonically increasing while net income is positive.
	assert.True(t, rows[1].CumulativeROI.GreaterThan(rows[0].CumulativeROI))
	assert.True(t, rows[2].CumulativeROI.GreaterThan(rows[1].CumulativeROI))
}

func TestProject_MissingCostFailsRegardlessOfMix(t *testing.T) {
	proposal, mix := projectionFixture()
	proposal.EstimatedCost = nil

	_, err := Project(proposal, mix, 5, DefaultProjectionConfig())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "estimated_cost", verr.Field)
}

func TestProject_EmptyUnitMixFails(t *testing.T) {
	proposal, _ := projectionFixture()

	_, err := Project(proposal, nil, 5, DefaultProjectionConfig())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unit_mix", verr.Field)
}

func TestProject_NonPositiveYearsFails(t *testing.T) {
	proposal, mix := projectionFixture()

	for _, years := range []int{0, -3} {
		_, err := Project(proposal, mix, years, DefaultProjectionConfig())
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "years", verr.Field)
	}
}

func TestProject_YearsAreRelativeAndOrdered(t *testing.T) {
	proposal, mix := projectionFixture()

	rows, err := Project(proposal, mix, 10, DefaultProjectionConfig())
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Year)
		assert.Equal(t, proposal.ID, row.ProposalID)
	}
}

func TestProject_Deterministic(t *testing.T) {
	proposal, mix := projectionFixture()

	first, err := Project(proposal, mix, 7, DefaultProjectionConfig())
	require.NoError(t, err)
	second, err := Project(proposal, mix, 7, DefaultProjectionConfig())
	require.NoError(t, err)

	for i := range first {
		assert.True(t, first[i].Revenue.Equal(second[i].Revenue))
		assert.True(t, first[i].CumulativeROI.Equal(second[i].CumulativeROI))
	}
}
