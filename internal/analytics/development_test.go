package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityscope/server/internal/models"
)

func date(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

func neighborhoodCtx(id int64, score float64) NeighborhoodContext {
	// Build a context whose development score equals the requested value by
	// tuning vacancy: score = 100 - vacancy*5 with no demographics.
	return NeighborhoodContext{
		Neighborhood: models.Neighborhood{ID: id, Name: fmt.Sprintf("n%d", id)},
		Market:       &models.MarketSnapshot{NeighborhoodID: id, VacancyRatePct: (100 - score) / 5},
	}
}

func TestDevelopmentScore_Formula(t *testing.T) {
	m := &models.MarketSnapshot{VacancyRatePct: 4}
	d := &models.DemographicSnapshot{
		PopulationGrowthPct: 1.5,
		TransitScore:        80,
		MedianIncome:        45000,
	}

	// (100 - 4*5) + 1.5*10 + 80*0.3 + 45000/60000*15 = 80 + 15 + 24 + 11.25
	assert.InDelta(t, 130.25, DevelopmentScore(m, d), 1e-9)
}

func TestDevelopmentScore_IncomeCapped(t *testing.T) {
	d := &models.DemographicSnapshot{MedianIncome: 120000}
	// 100 + 15: income component caps at 15 above 60k.
	assert.InDelta(t, 115, DevelopmentScore(nil, d), 1e-9)
}

func TestDevelopmentScore_NoHistoryDefaultsToZeroComponents(t *testing.T) {
	// All components default to 0; only the vacancy base remains.
	assert.InDelta(t, 100, DevelopmentScore(nil, nil), 1e-9)
}

func TestComputeRankings_NoHistoryNeverPanics(t *testing.T) {
	contexts := []NeighborhoodContext{
		{Neighborhood: models.Neighborhood{ID: 1, Name: "a"}},
		{Neighborhood: models.Neighborhood{ID: 2, Name: "b"}},
	}

	rankings := ComputeRankings(contexts)
	require.Len(t, rankings, 2)
	for _, r := range rankings {
		assert.InDelta(t, 100, r.DevelopmentScore, 1e-9)
	}
}

func TestComputeRankings_CompetitionRank(t *testing.T) {
	contexts := []NeighborhoodContext{
		neighborhoodCtx(1, 90),
		neighborhoodCtx(2, 90),
		neighborhoodCtx(3, 80),
	}

	rankings := ComputeRankings(contexts)
	require.Len(t, rankings, 3)
	assert.Equal(t, 1, rankings[0].OverallRank)
	assert.Equal(t, 1, rankings[1].OverallRank)
	assert.Equal(t, 3, rankings[2].OverallRank, "rank after a tie skips ahead")
}

func TestComputeRankings_TieOrderIsStable(t *testing.T) {
	contexts := []NeighborhoodContext{
		neighborhoodCtx(7, 90),
		neighborhoodCtx(3, 90),
	}

	first := ComputeRankings(contexts)
	second := ComputeRankings(contexts)
	require.Len(t, first, 2)
	assert.Equal(t, int64(7), first[0].NeighborhoodID, "insertion order breaks ties")
	assert.Equal(t, first, second)
}

func TestComputeRankings_QuartilesOverEight(t *testing.T) {
	var contexts []NeighborhoodContext
	for i := 0; i < 8; i++ {
		contexts = append(contexts, neighborhoodCtx(int64(i+1), float64(95-i*5)))
	}

	rankings := ComputeRankings(contexts)
	require.Len(t, rankings, 8)

	wantQuartiles := []int{1, 1, 2, 2, 3, 3, 4, 4}
	for i, r := range rankings {
		assert.Equal(t, wantQuartiles[i], r.Quartile, "position %d", i)
	}
}

func TestNtile_UnevenCounts(t *testing.T) {
	// 6 rows over 4 buckets: the first two buckets take the extra rows.
	want := []int{1, 1, 2, 2, 3, 4}
	for i := 0; i < 6; i++ {
		assert.Equal(t, want[i], ntile(i, 6, 4), "position %d", i)
	}
}

func TestComputeRankings_SnapshotFieldsEchoed(t *testing.T) {
	contexts := []NeighborhoodContext{{
		Neighborhood: models.Neighborhood{ID: 1, Name: "Astoria", BoroughName: "Queens"},
		Market: &models.MarketSnapshot{
			MedianSalePrice: 850000,
			MedianRent:      2900,
			VacancyRatePct:  3.2,
		},
		Demographics: &models.DemographicSnapshot{
			Population:   78000,
			MedianIncome: 72000,
			TransitScore: 88,
		},
	}}

	rankings := ComputeRankings(contexts)
	require.Len(t, rankings, 1)
	r := rankings[0]
	assert.Equal(t, "Astoria", r.NeighborhoodName)
	assert.Equal(t, "Queens", r.BoroughName)
	assert.Equal(t, 850000.0, r.MedianSalePrice)
	assert.Equal(t, 78000, r.Population)
	assert.Equal(t, 1, r.OverallRank)
}

func TestComputeTrends(t *testing.T) {
	snaps := []models.MarketSnapshot{
		{ID: 1, NeighborhoodID: 1, Period: date(2024, 1), MedianSalePrice: 100, MedianRent: 2000},
		{ID: 2, NeighborhoodID: 1, Period: date(2024, 4), MedianSalePrice: 150, MedianRent: 2100},
		{ID: 3, NeighborhoodID: 2, Period: date(2024, 1), MedianSalePrice: 500, MedianRent: 3000},
	}
	names := map[int64]string{1: "Astoria", 2: "Harlem"}

	trends := ComputeTrends(snaps, names)
	require.Len(t, trends, 3)

	assert.Equal(t, "Astoria", trends[0].NeighborhoodName)
	assert.Nil(t, trends[0].PriceChangePct)
	assert.Nil(t, trends[0].RentChangePct)

	require.NotNil(t, trends[1].PriceChangePct)
	assert.InDelta(t, 50.0, *trends[1].PriceChangePct, 1e-9)
	assert.InDelta(t, 5.0, *trends[1].RentChangePct, 1e-9)

	assert.Equal(t, "Harlem", trends[2].NeighborhoodName)
	assert.Nil(t, trends[2].PriceChangePct, "first period of another neighborhood has no prior")
}
