package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"cityscope/server/internal/analytics"
	"cityscope/server/internal/models"
)

// ErrStaleWrite reports that a computed result was discarded because a
// newer result had already been written for the same proposal.
var ErrStaleWrite = fmt.Errorf("stale computation result discarded")

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// CreateBorough inserts a borough and returns its id.
func (d *Database) CreateBorough(ctx context.Context, name, code string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO boroughs (name, code) VALUES (?, ?)`, name, code)
	if err != nil {
		return 0, fmt.Errorf("failed to insert borough: %w", err)
	}
	return res.LastInsertId()
}

// CreateNeighborhood inserts a neighborhood and returns its id.
func (d *Database) CreateNeighborhood(ctx context.Context, n models.Neighborhood) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO neighborhoods (borough_id, name, latitude, longitude, area_sq_miles)
		VALUES (?, ?, ?, ?, ?)
	`, n.BoroughID, n.Name, n.Latitude, n.Longitude, n.AreaSqMiles)
	if err != nil {
		return 0, fmt.Errorf("failed to insert neighborhood: %w", err)
	}
	return res.LastInsertId()
}

// CreateZoningRule inserts a zoning rule and returns its id.
func (d *Database) CreateZoningRule(ctx context.Context, z models.ZoningRule) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO zoning_rules (neighborhood_id, code, category, max_far, max_height_ft, residential_allowed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, z.NeighborhoodID, z.Code, z.Category, z.MaxFAR, z.MaxHeightFt, z.ResidentialAllowed)
	if err != nil {
		return 0, fmt.Errorf("failed to insert zoning rule: %w", err)
	}
	return res.LastInsertId()
}

// CreateProposal inserts a proposal in draft at version 1 with no
// feasibility score; the score stays null until explicitly requested.
func (d *Database) CreateProposal(ctx context.Context, p models.Proposal) (int64, error) {
	status := p.Status
	if status == "" {
		status = models.StatusDraft
	}
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO proposals (owner, neighborhood_id, title, description, status,
			lot_size_sqft, total_units, estimated_cost, projected_revenue, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, p.Owner, p.NeighborhoodID, p.Title, p.Description, status,
		p.LotSizeSqft, p.TotalUnits, p.EstimatedCost, p.ProjectedRevenue)
	if err != nil {
		return 0, fmt.Errorf("failed to insert proposal: %w", err)
	}
	return res.LastInsertId()
}

// UpdateProposal writes new scalar fields, bumps the version counter, and
// records a status-history row when the status changed. It returns the
// updated proposal.
func (d *Database) UpdateProposal(ctx context.Context, p models.Proposal, changedBy string) (*models.Proposal, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM proposals WHERE id = ?`, p.ID).Scan(&oldStatus)
	if err == sql.ErrNoRows {
		return nil, &analytics.NotFoundError{Kind: "proposal", ID: p.ID}
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE proposals
		SET neighborhood_id = ?, title = ?, description = ?, status = ?,
		    lot_size_sqft = ?, total_units = ?, estimated_cost = ?,
		    projected_revenue = ?, version = version + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.NeighborhoodID, p.Title, p.Description, p.Status,
		p.LotSizeSqft, p.TotalUnits, p.EstimatedCost, p.ProjectedRevenue, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update proposal: %w", err)
	}

	if p.Status != "" && p.Status != oldStatus {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO proposal_status_history (proposal_id, old_status, new_status, changed_by)
			VALUES (?, ?, ?, ?)
		`, p.ID, oldStatus, p.Status, changedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to record status change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit proposal update: %w", err)
	}

	updated, _, err := d.Proposal(ctx, p.ID)
	return updated, err
}

// ReplaceUnitMix swaps a proposal's unit mix wholesale and bumps the
// proposal version.
func (d *Database) ReplaceUnitMix(ctx context.Context, proposalID int64, mix []models.UnitMixEntry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM unit_mix WHERE proposal_id = ?`, proposalID); err != nil {
		return fmt.Errorf("failed to clear unit mix: %w", err)
	}
	for _, u := range mix {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO unit_mix (proposal_id, unit_type, count, avg_sqft, projected_rent)
			VALUES (?, ?, ?, ?, ?)
		`, proposalID, u.UnitType, u.Count, u.AvgSqft, u.ProjectedRent)
		if err != nil {
			return fmt.Errorf("failed to insert unit mix entry: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE proposals SET version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, proposalID); err != nil {
		return fmt.Errorf("failed to bump proposal version: %w", err)
	}

	return tx.Commit()
}

// SetFeasibilityScore writes a computed score tagged with the proposal
// version it was computed from. The optimistic guard discards the write if
// a result computed from a newer version is already stored, so a stale
// score can never clobber a fresher one.
func (d *Database) SetFeasibilityScore(ctx context.Context, proposalID int64, score decimal.Decimal, version int64) error {
	value, _ := score.Float64()
	res, err := d.db.ExecContext(ctx, `
		UPDATE proposals
		SET feasibility_score = ?, score_version = ?
		WHERE id = ?
		  AND (score_version IS NULL OR score_version <= ?)
	`, value, version, proposalID, version)
	if err != nil {
		return fmt.Errorf("failed to write feasibility score: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		d.logger.WithField("proposal_id", proposalID).
			WithField("version", version).
			Info("Discarded stale feasibility score")
		return ErrStaleWrite
	}
	return nil
}

// ReplaceProjections atomically replaces a proposal's projection rows. The
// whole write is skipped when the proposal has been edited past the version
// the projection was computed from; partial replacement is never observable.
func (d *Database) ReplaceProjections(ctx context.Context, proposalID int64, version int64, rows []models.FinancialProjectionYear) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM proposals WHERE id = ?`, proposalID).Scan(&currentVersion)
	if err == sql.ErrNoRows {
		return &analytics.NotFoundError{Kind: "proposal", ID: proposalID}
	}
	if err != nil {
		return err
	}
	if currentVersion > version {
		d.logger.WithField("proposal_id", proposalID).
			WithField("version", version).
			Info("Discarded stale projection run")
		return ErrStaleWrite
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM financial_projections WHERE proposal_id = ?`, proposalID); err != nil {
		return fmt.Errorf("failed to clear projections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO financial_projections (proposal_id, year, revenue, expenses, net_income, cumulative_roi)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare projection insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		revenue, _ := row.Revenue.Float64()
		expenses, _ := row.Expenses.Float64()
		net, _ := row.NetIncome.Float64()
		roi, _ := row.CumulativeROI.Float64()
		if _, err := stmt.ExecContext(ctx, proposalID, row.Year, revenue, expenses, net, roi); err != nil {
			return fmt.Errorf("failed to insert projection year %d: %w", row.Year, err)
		}
	}

	return tx.Commit()
}
