package models

import "time"

// NeighborhoodRanking is a derived row, recomputed on every query and never
// persisted. OverallRank uses competition ranking (equal scores share a
// rank, the next distinct score skips ahead); Quartile is a 4-bucket
// equal-count partition over the score-descending order, 1 = best.
type NeighborhoodRanking struct {
	NeighborhoodID   int64   `json:"neighborhood_id"`
	NeighborhoodName string  `json:"neighborhood_name"`
	BoroughName      string  `json:"borough_name"`
	MedianSalePrice  float64 `json:"median_sale_price"`
	MedianRent       float64 `json:"median_rent"`
	VacancyRatePct   float64 `json:"vacancy_rate_pct"`
	Population       int     `json:"population"`
	MedianIncome     float64 `json:"median_income"`
	TransitScore     float64 `json:"transit_score"`
	DevelopmentScore float64 `json:"development_score"`
	OverallRank      int     `json:"overall_rank"`
	Quartile         int     `json:"quartile"`
}

// MarketTrend is one market snapshot annotated with period-over-period
// percent changes relative to the prior period for the same neighborhood.
// Change fields are nil for the first period and when the prior value is 0.
type MarketTrend struct {
	SnapshotID       int64     `json:"id"`
	NeighborhoodID   int64     `json:"neighborhood_id"`
	NeighborhoodName string    `json:"neighborhood_name"`
	Period           time.Time `json:"period"`
	MedianSalePrice  float64   `json:"median_sale_price"`
	MedianRent       float64   `json:"median_rent"`
	PriceChangePct   *float64  `json:"price_change_pct"`
	RentChangePct    *float64  `json:"rent_change_pct"`
}

// DemandOverlay is the per-neighborhood summary consumed by the opportunity
// map. Zoning fields are descriptive only and carry no scoring weight.
type DemandOverlay struct {
	NeighborhoodID       int64    `json:"neighborhood_id"`
	Name                 string   `json:"name"`
	BoroughName          string   `json:"borough_name"`
	Latitude             float64  `json:"latitude"`
	Longitude            float64  `json:"longitude"`
	DemandScore          float64  `json:"demand_score"`
	ApprovalRatePct      *float64 `json:"approval_rate_pct"`
	ZoningHasResidential bool     `json:"zoning_has_residential"`
	ZoningHasCommercial  bool     `json:"zoning_has_commercial"`
	ZoningHasMixed       bool     `json:"zoning_has_mixed"`
	ZoningCodes          []string `json:"zoning_codes"`
}

// BoroughSummary aggregates proposal activity per borough for the dashboard.
type BoroughSummary struct {
	BoroughName           string   `json:"borough_name"`
	TotalProposals        int      `json:"total_proposals"`
	TotalUnits            int      `json:"total_units"`
	AvgFeasibilityScore   *float64 `json:"avg_feasibility_score"`
	TotalEstimatedCost    float64  `json:"total_estimated_cost"`
	TotalProjectedRevenue float64  `json:"total_projected_revenue"`
}
