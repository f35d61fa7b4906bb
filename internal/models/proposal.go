package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Proposal lifecycle statuses. Transitions are expected to move forward
// (draft -> submitted -> under_review -> approved/rejected) but the engine
// does not enforce ordering.
const (
	StatusDraft       = "draft"
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
)

// Unit types for a proposal's unit mix.
const (
	UnitStudio  = "studio"
	UnitOneBR   = "1br"
	UnitTwoBR   = "2br"
	UnitThreeBR = "3br"
	UnitFourBR  = "4br+"
)

// Proposal is a development proposal for a neighborhood. Version is bumped
// on every edit and tags recompute jobs so that a stale feasibility result
// can never overwrite a fresher one. ScoreVersion records the proposal
// version the stored score was computed from.
type Proposal struct {
	ID               int64     `json:"id"`
	Owner            string    `json:"owner"`
	NeighborhoodID   int64     `json:"neighborhood_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	LotSizeSqft      float64   `json:"lot_size_sqft"`
	TotalUnits       int       `json:"total_units"`
	EstimatedCost    *float64  `json:"estimated_cost"`
	ProjectedRevenue *float64  `json:"projected_revenue"`
	FeasibilityScore *float64  `json:"feasibility_score"`
	Version          int64     `json:"version"`
	ScoreVersion     *int64    `json:"score_version,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UnitMixEntry describes one unit type within a proposal. Unique per
// (proposal, unit_type). When a proposal carries a unit mix, the counts
// are expected to sum to the proposal's TotalUnits.
type UnitMixEntry struct {
	ID            int64   `json:"id"`
	ProposalID    int64   `json:"proposal_id"`
	UnitType      string  `json:"unit_type"`
	Count         int     `json:"count"`
	AvgSqft       float64 `json:"avg_sqft"`
	ProjectedRent float64 `json:"projected_rent"`
}

// FinancialProjectionYear is one simulated year of a proposal's forecast.
// Year is relative (1..N). Rows for a proposal are generated wholesale and
// replace any prior projection.
type FinancialProjectionYear struct {
	ProposalID    int64           `json:"proposal_id"`
	Year          int             `json:"year"`
	Revenue       decimal.Decimal `json:"revenue"`
	Expenses      decimal.Decimal `json:"expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
	CumulativeROI decimal.Decimal `json:"cumulative_roi"`
}

// ProposalStatusEvent records a lifecycle transition for audit purposes.
type ProposalStatusEvent struct {
	ID         int64     `json:"id"`
	ProposalID int64     `json:"proposal_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	ChangedAt  time.Time `json:"changed_at"`
	ChangedBy  string    `json:"changed_by"`
}
