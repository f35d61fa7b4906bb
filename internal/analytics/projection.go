package analytics

import (
	"github.com/shopspring/decimal"

	"cityscope/server/internal/models"
)

// ProjectionConfig holds the simulation rates for financial projections.
// Percentages are whole numbers (3 means 3%/year).
type ProjectionConfig struct {
	RevenueGrowthPct float64
	ExpenseGrowthPct float64
	ExpenseRatioPct  float64
}

// DefaultProjectionConfig mirrors the standard underwriting assumptions:
// 3% annual revenue growth, 2% expense growth, year-1 expenses at 35% of
// revenue.
func DefaultProjectionConfig() ProjectionConfig {
	return ProjectionConfig{
		RevenueGrowthPct: 3,
		ExpenseGrowthPct: 2,
		ExpenseRatioPct:  35,
	}
}

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Project simulates years of revenue, expenses, net income, and cumulative
// ROI for a proposal. Year-1 revenue is the unit mix's annual rent roll;
// later years grow revenue and expenses at the configured rates. The
// preconditions are enforced at the API boundary too, but are re-validated
// here so the engine never simulates from an incomplete proposal.
func Project(p models.Proposal, mix []models.UnitMixEntry, years int, cfg ProjectionConfig) ([]models.FinancialProjectionYear, error) {
	if years <= 0 {
		return nil, &ValidationError{Field: "years", Reason: "must be a positive integer"}
	}
	if p.EstimatedCost == nil || *p.EstimatedCost <= 0 {
		return nil, &ValidationError{Field: "estimated_cost", Reason: "must be set before generating projections"}
	}
	if len(mix) == 0 {
		return nil, &ValidationError{Field: "unit_mix", Reason: "must be non-empty before generating projections"}
	}

	revenue := decimal.Zero
	for _, u := range mix {
		annual := decimal.NewFromFloat(u.ProjectedRent).
			Mul(decimal.NewFromInt(int64(u.Count))).
			Mul(twelve)
		revenue = revenue.Add(annual)
	}

	cost := decimal.NewFromFloat(*p.EstimatedCost)
	expenses := revenue.Mul(decimal.NewFromFloat(cfg.ExpenseRatioPct)).Div(hundred)
	revenueGrowth := decimal.NewFromFloat(1 + cfg.RevenueGrowthPct/100)
	expenseGrowth := decimal.NewFromFloat(1 + cfg.ExpenseGrowthPct/100)

	rows := make([]models.FinancialProjectionYear, 0, years)
	cumulative := decimal.Zero
	for year := 1; year <= years; year++ {
		if year > 1 {
			revenue = revenue.Mul(revenueGrowth)
			expenses = expenses.Mul(expenseGrowth)
		}
		net := revenue.Sub(expenses)
		cumulative = cumulative.Add(net)

		rows = append(rows, models.FinancialProjectionYear{
			ProposalID:    p.ID,
			Year:          year,
			Revenue:       revenue.Round(2),
			Expenses:      expenses.Round(2),
			NetIncome:     net.Round(2),
			CumulativeROI: cumulative.Div(cost).Mul(hundred).Round(2),
		})
	}
	return rows, nil
}
