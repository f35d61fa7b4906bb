package analytics

import (
	"sort"

	"cityscope/server/internal/models"
)

// NeighborhoodContext is the pre-fetched input snapshot for the scorers:
// the latest market and demographic records plus zoning rules and decided
// proposal counts. Market and Demographics are nil when the neighborhood
// has no history.
type NeighborhoodContext struct {
	Neighborhood models.Neighborhood
	Market       *models.MarketSnapshot
	Demographics *models.DemographicSnapshot
	Zoning       []models.ZoningRule
	Approved     int
	Rejected     int
}

// DevelopmentScore computes the composite development-opportunity score.
// Absent snapshots contribute 0 for every component. The raw score is not
// clamped: it is a relative ranking signal, not a percentage.
func DevelopmentScore(m *models.MarketSnapshot, d *models.DemographicSnapshot) float64 {
	var vacancy, growth, transit, income float64
	if m != nil {
		vacancy = m.VacancyRatePct
	}
	if d != nil {
		growth = d.PopulationGrowthPct
		transit = d.TransitScore
		income = d.MedianIncome
	}

	incomeComponent := income / 60000 * 15
	if income > 60000 {
		incomeComponent = 15
	}

	return (100 - vacancy*5) + growth*10 + transit*0.3 + incomeComponent
}

// ComputeRankings scores every neighborhood, then assigns overall_rank
// (competition rank by score descending; equal scores share a rank) and
// quartile (4 equal-count buckets over the score-descending order, 1 = top).
// Ties keep their input order, so the output is deterministic for a fixed
// input snapshot.
func ComputeRankings(contexts []NeighborhoodContext) []models.NeighborhoodRanking {
	rankings := make([]models.NeighborhoodRanking, 0, len(contexts))
	for _, c := range contexts {
		r := models.NeighborhoodRanking{
			NeighborhoodID:   c.Neighborhood.ID,
			NeighborhoodName: c.Neighborhood.Name,
			BoroughName:      c.Neighborhood.BoroughName,
			DevelopmentScore: DevelopmentScore(c.Market, c.Demographics),
		}
		if c.Market != nil {
			r.MedianSalePrice = c.Market.MedianSalePrice
			r.MedianRent = c.Market.MedianRent
			r.VacancyRatePct = c.Market.VacancyRatePct
		}
		if c.Demographics != nil {
			r.Population = c.Demographics.Population
			r.MedianIncome = c.Demographics.MedianIncome
			r.TransitScore = c.Demographics.TransitScore
		}
		rankings = append(rankings, r)
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].DevelopmentScore > rankings[j].DevelopmentScore
	})

	for i := range rankings {
		if i > 0 && rankings[i].DevelopmentScore == rankings[i-1].DevelopmentScore {
			rankings[i].OverallRank = rankings[i-1].OverallRank
		} else {
			rankings[i].OverallRank = i + 1
		}
		rankings[i].Quartile = ntile(i, len(rankings), 4)
	}

	return rankings
}

// ntile assigns position i of n ordered rows to one of buckets 1..k with
// equal counts; when n is not divisible by k the earlier buckets take the
// extra row, matching SQL NTILE.
func ntile(i, n, k int) int {
	base := n / k
	rem := n % k
	// The first rem buckets hold base+1 rows.
	cutoff := rem * (base + 1)
	if i < cutoff {
		return i/(base+1) + 1
	}
	if base == 0 {
		return k
	}
	return rem + (i-cutoff)/base + 1
}

// ComputeTrends annotates every market snapshot with period-over-period
// percent changes for price and rent, partitioned by neighborhood. Names
// maps neighborhood id to display name.
func ComputeTrends(snapshots []models.MarketSnapshot, names map[int64]string) []models.MarketTrend {
	key := func(s models.MarketSnapshot) int64 { return s.NeighborhoodID }
	less := func(a, b models.MarketSnapshot) bool {
		if !a.Period.Equal(b.Period) {
			return a.Period.Before(b.Period)
		}
		return a.ID < b.ID
	}

	priceChanges := PercentChanges(snapshots, key, less,
		func(s models.MarketSnapshot) float64 { return s.MedianSalePrice })
	rentChanges := PercentChanges(snapshots, key, less,
		func(s models.MarketSnapshot) float64 { return s.MedianRent })

	trends := make([]models.MarketTrend, 0, len(priceChanges))
	for i, pc := range priceChanges {
		s := pc.Record
		trends = append(trends, models.MarketTrend{
			SnapshotID:       s.ID,
			NeighborhoodID:   s.NeighborhoodID,
			NeighborhoodName: names[s.NeighborhoodID],
			Period:           s.Period,
			MedianSalePrice:  s.MedianSalePrice,
			MedianRent:       s.MedianRent,
			PriceChangePct:   pc.Pct,
			RentChangePct:    rentChanges[i].Pct,
		})
	}
	return trends
}
