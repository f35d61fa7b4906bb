package analytics

import (
	"math"
	"sort"

	"cityscope/server/internal/models"
)

// Neutral midpoints used when a neighborhood has no snapshot history, so
// missing data neither penalizes nor boosts the demand score.
const (
	defaultVacancyPct = 5.0
	defaultRent       = 2000.0
	defaultGrowthPct  = 0.0
	defaultTransit    = 50.0
)

const maxOverlayZoningCodes = 5

// DemandScore computes the market-demand score for the map overlay,
// clamped to [0, 100].
func DemandScore(m *models.MarketSnapshot, d *models.DemographicSnapshot) float64 {
	vacancy, rent := defaultVacancyPct, defaultRent
	growth, transit := defaultGrowthPct, defaultTransit
	if m != nil {
		vacancy = m.VacancyRatePct
		rent = m.MedianRent
	}
	if d != nil {
		growth = d.PopulationGrowthPct
		transit = d.TransitScore
	}

	score := (100 - vacancy*8) +
		math.Min(rent/100, 30) +
		growth*5 +
		transit*0.3
	return clamp(score, 0, 100)
}

// ApprovalRate returns approved / decided * 100, or nil when the
// neighborhood has no decided proposals.
func ApprovalRate(approved, rejected int) *float64 {
	decided := approved + rejected
	if decided == 0 {
		return nil
	}
	rate := float64(approved) / float64(decided) * 100
	return &rate
}

// ComputeDemandOverlay builds the per-neighborhood demand and zoning summary
// for map consumption. Zoning flags and codes are descriptive only.
func ComputeDemandOverlay(contexts []NeighborhoodContext) []models.DemandOverlay {
	overlays := make([]models.DemandOverlay, 0, len(contexts))
	for _, c := range contexts {
		o := models.DemandOverlay{
			NeighborhoodID:  c.Neighborhood.ID,
			Name:            c.Neighborhood.Name,
			BoroughName:     c.Neighborhood.BoroughName,
			Latitude:        c.Neighborhood.Latitude,
			Longitude:       c.Neighborhood.Longitude,
			DemandScore:     DemandScore(c.Market, c.Demographics),
			ApprovalRatePct: ApprovalRate(c.Approved, c.Rejected),
			ZoningCodes:     []string{},
		}

		seen := make(map[string]bool)
		for _, z := range c.Zoning {
			switch z.Category {
			case models.ZoningResidential:
				o.ZoningHasResidential = true
			case models.ZoningCommercial:
				o.ZoningHasCommercial = true
			case models.ZoningMixed:
				o.ZoningHasMixed = true
			}
			if !seen[z.Code] {
				seen[z.Code] = true
				o.ZoningCodes = append(o.ZoningCodes, z.Code)
			}
		}
		sort.Strings(o.ZoningCodes)
		if len(o.ZoningCodes) > maxOverlayZoningCodes {
			o.ZoningCodes = o.ZoningCodes[:maxOverlayZoningCodes]
		}

		overlays = append(overlays, o)
	}
	return overlays
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
