package models

import "time"

type Borough struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Neighborhood struct {
	ID          int64   `json:"id"`
	BoroughID   int64   `json:"borough_id"`
	BoroughName string  `json:"borough_name,omitempty"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	AreaSqMiles float64 `json:"area_sq_miles"`
}

// MarketSnapshot is a point-in-time market record for one neighborhood.
// Rows are append-only: once written they are historical fact and never
// mutated. Unique per (neighborhood, period).
type MarketSnapshot struct {
	ID              int64     `json:"id"`
	NeighborhoodID  int64     `json:"neighborhood_id"`
	Period          time.Time `json:"period"`
	MedianSalePrice float64   `json:"median_sale_price"`
	MedianRent      float64   `json:"median_rent"`
	VacancyRatePct  float64   `json:"vacancy_rate_pct"`
	PermitsIssued   int       `json:"permits_issued"`
}

// DemographicSnapshot is an annual demographic record for one neighborhood.
// Append-only, unique per (neighborhood, year).
type DemographicSnapshot struct {
	ID                  int64   `json:"id"`
	NeighborhoodID      int64   `json:"neighborhood_id"`
	Year                int     `json:"year"`
	Population          int     `json:"population"`
	MedianIncome        float64 `json:"median_income"`
	PopulationGrowthPct float64 `json:"population_growth_pct"`
	TransitScore        float64 `json:"transit_score"`
}

// Zoning categories.
const (
	ZoningResidential   = "residential"
	ZoningCommercial    = "commercial"
	ZoningManufacturing = "manufacturing"
	ZoningMixed         = "mixed"
)

type ZoningRule struct {
	ID                 int64   `json:"id"`
	NeighborhoodID     int64   `json:"neighborhood_id"`
	Code               string  `json:"code"`
	Category           string  `json:"category"`
	MaxFAR             float64 `json:"max_far"`
	MaxHeightFt        int     `json:"max_height_ft"`
	ResidentialAllowed bool    `json:"residential_allowed"`
}
