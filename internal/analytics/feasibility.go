package analytics

import (
	"github.com/shopspring/decimal"

	"cityscope/server/internal/models"
)

// assumedUnitSqft stands in for average unit size when a proposal has no
// unit mix yet.
const assumedUnitSqft = 700.0

// Feasibility computes a proposal's 0-100 feasibility score from zoning
// compliance, market support, and unit economics. It is a pure function of
// its inputs: recomputation with an unchanged snapshot yields an identical
// score. Missing optional context (no market snapshot, no zoning rules)
// degrades to a neutral partial score instead of failing.
func Feasibility(p models.Proposal, mix []models.UnitMixEntry, c NeighborhoodContext) (decimal.Decimal, error) {
	if p.LotSizeSqft <= 0 {
		return decimal.Zero, &ValidationError{Field: "lot_size_sqft", Reason: "must be positive"}
	}
	if p.TotalUnits <= 0 {
		return decimal.Zero, &ValidationError{Field: "total_units", Reason: "must be positive"}
	}

	score := zoningComponent(p, mix, c.Zoning) +
		marketComponent(mix, c.Market) +
		economicsComponent(p, mix)

	return decimal.NewFromFloat(clamp(score, 0, 100)).Round(2), nil
}

// zoningComponent (0-35) checks whether the proposal's implied density fits
// the most permissive residential-allowed rule. Full credit at or below 80%
// of max FAR, falling linearly to 0 at the limit. With no rules on file the
// component is neutral; with rules but no residential allowance it is 0.
func zoningComponent(p models.Proposal, mix []models.UnitMixEntry, rules []models.ZoningRule) float64 {
	if len(rules) == 0 {
		return 17.5
	}

	var bestFAR float64
	for _, r := range rules {
		if r.ResidentialAllowed && r.MaxFAR > bestFAR {
			bestFAR = r.MaxFAR
		}
	}
	if bestFAR == 0 {
		return 0
	}

	builtSqft := float64(p.TotalUnits) * assumedUnitSqft
	if len(mix) > 0 {
		builtSqft = 0
		for _, u := range mix {
			builtSqft += float64(u.Count) * u.AvgSqft
		}
	}

	ratio := (builtSqft / p.LotSizeSqft) / bestFAR
	switch {
	case ratio <= 0.8:
		return 35
	case ratio >= 1.0:
		return 0
	default:
		return 35 * (1 - ratio) / 0.2
	}
}

// marketComponent (0-35) rewards low vacancy and unit-mix rents supported
// by the market. Neutral when the neighborhood has no market history.
func marketComponent(mix []models.UnitMixEntry, m *models.MarketSnapshot) float64 {
	if m == nil {
		return 17.5
	}

	vacancyScore := clamp(20-m.VacancyRatePct*2, 0, 20)

	rentScore := 7.5
	if len(mix) > 0 && m.MedianRent > 0 {
		var totalRent float64
		var totalUnits int
		for _, u := range mix {
			totalRent += float64(u.Count) * u.ProjectedRent
			totalUnits += u.Count
		}
		if totalUnits > 0 {
			avgRent := totalRent / float64(totalUnits)
			rentScore = clamp(avgRent/m.MedianRent*10, 0, 15)
		}
	}

	return vacancyScore + rentScore
}

// economicsComponent (0-30) combines lot density headroom with projected
// gross yield against the cost basis. Yield is neutral when the cost basis
// or unit mix is absent.
func economicsComponent(p models.Proposal, mix []models.UnitMixEntry) float64 {
	lotPerUnit := p.LotSizeSqft / float64(p.TotalUnits)
	densityScore := clamp((lotPerUnit-100)/400*15, 0, 15)

	yieldScore := 7.5
	if p.EstimatedCost != nil && *p.EstimatedCost > 0 && len(mix) > 0 {
		var annualRent float64
		for _, u := range mix {
			annualRent += float64(u.Count) * u.ProjectedRent * 12
		}
		// 10% gross yield earns full credit.
		yieldScore = clamp(annualRent / *p.EstimatedCost / 0.10 * 15, 0, 15)
	}

	return densityScore + yieldScore
}
