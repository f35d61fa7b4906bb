package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cityscope/server/internal/analytics"
	"cityscope/server/internal/models"
)

const periodLayout = "2006-01-02"

// Neighborhoods returns all neighborhoods with their borough names.
func (d *Database) Neighborhoods(ctx context.Context) ([]models.Neighborhood, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT n.id, n.borough_id, b.name, n.name, n.latitude, n.longitude, n.area_sq_miles
		FROM neighborhoods n
		INNER JOIN boroughs b ON b.id = n.borough_id
		ORDER BY b.name, n.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighborhoods: %w", err)
	}
	defer rows.Close()

	neighborhoods := make([]models.Neighborhood, 0)
	for rows.Next() {
		var n models.Neighborhood
		if err := rows.Scan(&n.ID, &n.BoroughID, &n.BoroughName, &n.Name,
			&n.Latitude, &n.Longitude, &n.AreaSqMiles); err != nil {
			return nil, fmt.Errorf("failed to scan neighborhood: %w", err)
		}
		neighborhoods = append(neighborhoods, n)
	}
	return neighborhoods, rows.Err()
}

// NeighborhoodNames maps neighborhood ids to display names.
func (d *Database) NeighborhoodNames(ctx context.Context) (map[int64]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name FROM neighborhoods`)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighborhood names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// MarketHistory returns market snapshots oldest first for one neighborhood,
// or for every neighborhood when neighborhoodID is 0.
func (d *Database) MarketHistory(ctx context.Context, neighborhoodID int64) ([]models.MarketSnapshot, error) {
	query := `
		SELECT id, neighborhood_id, period, median_sale_price, median_rent,
		       vacancy_rate_pct, permits_issued
		FROM market_snapshots
	`
	var args []interface{}
	if neighborhoodID != 0 {
		query += " WHERE neighborhood_id = ?"
		args = append(args, neighborhoodID)
	}
	query += " ORDER BY neighborhood_id, period, id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query market history: %w", err)
	}
	defer rows.Close()

	snapshots := make([]models.MarketSnapshot, 0)
	for rows.Next() {
		s, err := scanMarketSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// NeighborhoodContexts assembles the latest-snapshot context for every
// neighborhood. Latest-record selection happens here in Go, not in SQL, so
// the semantics do not depend on the storage engine's window functions.
func (d *Database) NeighborhoodContexts(ctx context.Context) ([]analytics.NeighborhoodContext, error) {
	return d.neighborhoodContexts(ctx, 0)
}

// NeighborhoodContext returns the context for a single neighborhood.
func (d *Database) NeighborhoodContext(ctx context.Context, neighborhoodID int64) (*analytics.NeighborhoodContext, error) {
	contexts, err := d.neighborhoodContexts(ctx, neighborhoodID)
	if err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return nil, &analytics.NotFoundError{Kind: "neighborhood", ID: neighborhoodID}
	}
	return &contexts[0], nil
}

func (d *Database) neighborhoodContexts(ctx context.Context, neighborhoodID int64) ([]analytics.NeighborhoodContext, error) {
	neighborhoods, err := d.Neighborhoods(ctx)
	if err != nil {
		return nil, err
	}
	if neighborhoodID != 0 {
		var filtered []models.Neighborhood
		for _, n := range neighborhoods {
			if n.ID == neighborhoodID {
				filtered = append(filtered, n)
			}
		}
		neighborhoods = filtered
	}
	if len(neighborhoods) == 0 {
		return nil, nil
	}

	marketSnapshots, err := d.MarketHistory(ctx, neighborhoodID)
	if err != nil {
		return nil, err
	}
	demoSnapshots, err := d.demographicHistory(ctx, neighborhoodID)
	if err != nil {
		return nil, err
	}
	zoning, err := d.zoningRules(ctx, neighborhoodID)
	if err != nil {
		return nil, err
	}
	approved, rejected, err := d.decidedProposalCounts(ctx, neighborhoodID)
	if err != nil {
		return nil, err
	}

	latestMarket := analytics.Latest(marketSnapshots,
		func(s models.MarketSnapshot) int64 { return s.NeighborhoodID },
		func(a, b models.MarketSnapshot) bool {
			if !a.Period.Equal(b.Period) {
				return a.Period.Before(b.Period)
			}
			return a.ID < b.ID
		})
	latestDemo := analytics.Latest(demoSnapshots,
		func(s models.DemographicSnapshot) int64 { return s.NeighborhoodID },
		func(a, b models.DemographicSnapshot) bool {
			if a.Year != b.Year {
				return a.Year < b.Year
			}
			return a.ID < b.ID
		})

	zoningByNeighborhood := make(map[int64][]models.ZoningRule)
	for _, z := range zoning {
		zoningByNeighborhood[z.NeighborhoodID] = append(zoningByNeighborhood[z.NeighborhoodID], z)
	}

	contexts := make([]analytics.NeighborhoodContext, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		c := analytics.NeighborhoodContext{
			Neighborhood: n,
			Zoning:       zoningByNeighborhood[n.ID],
			Approved:     approved[n.ID],
			Rejected:     rejected[n.ID],
		}
		if m, ok := latestMarket[n.ID]; ok {
			snapshot := m
			c.Market = &snapshot
		}
		if dm, ok := latestDemo[n.ID]; ok {
			snapshot := dm
			c.Demographics = &snapshot
		}
		contexts = append(contexts, c)
	}
	return contexts, nil
}

func (d *Database) demographicHistory(ctx context.Context, neighborhoodID int64) ([]models.DemographicSnapshot, error) {
	query := `
		SELECT id, neighborhood_id, year, population, median_income,
		       population_growth_pct, transit_score
		FROM demographic_snapshots
	`
	var args []interface{}
	if neighborhoodID != 0 {
		query += " WHERE neighborhood_id = ?"
		args = append(args, neighborhoodID)
	}
	query += " ORDER BY neighborhood_id, year, id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query demographics: %w", err)
	}
	defer rows.Close()

	var snapshots []models.DemographicSnapshot
	for rows.Next() {
		var s models.DemographicSnapshot
		if err := rows.Scan(&s.ID, &s.NeighborhoodID, &s.Year, &s.Population,
			&s.MedianIncome, &s.PopulationGrowthPct, &s.TransitScore); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (d *Database) zoningRules(ctx context.Context, neighborhoodID int64) ([]models.ZoningRule, error) {
	query := `
		SELECT id, neighborhood_id, code, category, max_far, max_height_ft, residential_allowed
		FROM zoning_rules
	`
	var args []interface{}
	if neighborhoodID != 0 {
		query += " WHERE neighborhood_id = ?"
		args = append(args, neighborhoodID)
	}
	query += " ORDER BY code"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query zoning rules: %w", err)
	}
	defer rows.Close()

	var rules []models.ZoningRule
	for rows.Next() {
		var z models.ZoningRule
		if err := rows.Scan(&z.ID, &z.NeighborhoodID, &z.Code, &z.Category,
			&z.MaxFAR, &z.MaxHeightFt, &z.ResidentialAllowed); err != nil {
			return nil, err
		}
		rules = append(rules, z)
	}
	return rules, rows.Err()
}

func (d *Database) decidedProposalCounts(ctx context.Context, neighborhoodID int64) (approved, rejected map[int64]int, err error) {
	query := `
		SELECT neighborhood_id,
		       SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END)
		FROM proposals
		WHERE status IN ('approved', 'rejected')
	`
	var args []interface{}
	if neighborhoodID != 0 {
		query += " AND neighborhood_id = ?"
		args = append(args, neighborhoodID)
	}
	query += " GROUP BY neighborhood_id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query proposal counts: %w", err)
	}
	defer rows.Close()

	approved = make(map[int64]int)
	rejected = make(map[int64]int)
	for rows.Next() {
		var id int64
		var a, r int
		if err := rows.Scan(&id, &a, &r); err != nil {
			return nil, nil, err
		}
		approved[id] = a
		rejected[id] = r
	}
	return approved, rejected, rows.Err()
}

// Proposal returns a proposal's scalar fields and unit mix.
func (d *Database) Proposal(ctx context.Context, proposalID int64) (*models.Proposal, []models.UnitMixEntry, error) {
	var p models.Proposal
	err := d.db.QueryRowContext(ctx, `
		SELECT id, owner, neighborhood_id, title, description, status,
		       lot_size_sqft, total_units, estimated_cost, projected_revenue,
		       feasibility_score, score_version, version, created_at, updated_at
		FROM proposals
		WHERE id = ?
	`, proposalID).Scan(
		&p.ID, &p.Owner, &p.NeighborhoodID, &p.Title, &p.Description, &p.Status,
		&p.LotSizeSqft, &p.TotalUnits, &p.EstimatedCost, &p.ProjectedRevenue,
		&p.FeasibilityScore, &p.ScoreVersion, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, &analytics.NotFoundError{Kind: "proposal", ID: proposalID}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query proposal: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, proposal_id, unit_type, count, avg_sqft, projected_rent
		FROM unit_mix
		WHERE proposal_id = ?
		ORDER BY unit_type
	`, proposalID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query unit mix: %w", err)
	}
	defer rows.Close()

	var mix []models.UnitMixEntry
	for rows.Next() {
		var u models.UnitMixEntry
		if err := rows.Scan(&u.ID, &u.ProposalID, &u.UnitType, &u.Count,
			&u.AvgSqft, &u.ProjectedRent); err != nil {
			return nil, nil, err
		}
		mix = append(mix, u)
	}
	return &p, mix, rows.Err()
}

// Projections returns the stored projection rows for a proposal, ordered
// by year.
func (d *Database) Projections(ctx context.Context, proposalID int64) ([]models.FinancialProjectionYear, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT proposal_id, year, revenue, expenses, net_income, cumulative_roi
		FROM financial_projections
		WHERE proposal_id = ?
		ORDER BY year
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projections: %w", err)
	}
	defer rows.Close()

	projections := make([]models.FinancialProjectionYear, 0)
	for rows.Next() {
		var row models.FinancialProjectionYear
		var revenue, expenses, net, roi float64
		if err := rows.Scan(&row.ProposalID, &row.Year, &revenue, &expenses, &net, &roi); err != nil {
			return nil, err
		}
		row.Revenue = decimalFromFloat(revenue)
		row.Expenses = decimalFromFloat(expenses)
		row.NetIncome = decimalFromFloat(net)
		row.CumulativeROI = decimalFromFloat(roi)
		projections = append(projections, row)
	}
	return projections, rows.Err()
}

// BoroughSummaries aggregates proposal activity per borough for the
// dashboard.
func (d *Database) BoroughSummaries(ctx context.Context) ([]models.BoroughSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT b.name,
		       COUNT(p.id),
		       COALESCE(SUM(p.total_units), 0),
		       AVG(p.feasibility_score),
		       COALESCE(SUM(p.estimated_cost), 0),
		       COALESCE(SUM(p.projected_revenue), 0)
		FROM boroughs b
		LEFT JOIN neighborhoods n ON n.borough_id = b.id
		LEFT JOIN proposals p ON p.neighborhood_id = n.id
		GROUP BY b.name
		ORDER BY b.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query borough summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.BoroughSummary
	for rows.Next() {
		var s models.BoroughSummary
		var avgScore sql.NullFloat64
		if err := rows.Scan(&s.BoroughName, &s.TotalProposals, &s.TotalUnits,
			&avgScore, &s.TotalEstimatedCost, &s.TotalProjectedRevenue); err != nil {
			return nil, err
		}
		if avgScore.Valid {
			v := avgScore.Float64
			s.AvgFeasibilityScore = &v
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMarketSnapshot(row rowScanner) (models.MarketSnapshot, error) {
	var s models.MarketSnapshot
	var period string
	err := row.Scan(&s.ID, &s.NeighborhoodID, &period, &s.MedianSalePrice,
		&s.MedianRent, &s.VacancyRatePct, &s.PermitsIssued)
	if err != nil {
		return s, fmt.Errorf("failed to scan market snapshot: %w", err)
	}
	t, err := time.Parse(periodLayout, period)
	if err != nil {
		return s, fmt.Errorf("failed to parse snapshot period %q: %w", period, err)
	}
	s.Period = t
	return s, nil
}
