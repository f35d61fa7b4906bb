package database

import "fmt"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS boroughs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		code TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS neighborhoods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		borough_id INTEGER NOT NULL REFERENCES boroughs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		area_sq_miles REAL NOT NULL DEFAULT 0,
		UNIQUE (borough_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS market_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id) ON DELETE CASCADE,
		period TEXT NOT NULL,
		median_sale_price REAL NOT NULL,
		median_rent REAL NOT NULL,
		vacancy_rate_pct REAL NOT NULL,
		permits_issued INTEGER NOT NULL DEFAULT 0,
		UNIQUE (neighborhood_id, period)
	)`,
	`CREATE TABLE IF NOT EXISTS demographic_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		population INTEGER NOT NULL,
		median_income REAL NOT NULL,
		population_growth_pct REAL NOT NULL,
		transit_score REAL NOT NULL,
		UNIQUE (neighborhood_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS zoning_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		category TEXT NOT NULL,
		max_far REAL NOT NULL,
		max_height_ft INTEGER NOT NULL,
		residential_allowed INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS proposals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		neighborhood_id INTEGER NOT NULL REFERENCES neighborhoods(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		lot_size_sqft REAL NOT NULL,
		total_units INTEGER NOT NULL,
		estimated_cost REAL,
		projected_revenue REAL,
		feasibility_score REAL,
		score_version INTEGER,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS unit_mix (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		proposal_id INTEGER NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
		unit_type TEXT NOT NULL,
		count INTEGER NOT NULL,
		avg_sqft REAL NOT NULL,
		projected_rent REAL NOT NULL,
		UNIQUE (proposal_id, unit_type)
	)`,
	`CREATE TABLE IF NOT EXISTS financial_projections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		proposal_id INTEGER NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		revenue REAL NOT NULL,
		expenses REAL NOT NULL,
		net_income REAL NOT NULL,
		cumulative_roi REAL NOT NULL,
		UNIQUE (proposal_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS proposal_status_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		proposal_id INTEGER NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
		old_status TEXT NOT NULL DEFAULT '',
		new_status TEXT NOT NULL,
		changed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		changed_by TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_market_snapshots_neighborhood
		ON market_snapshots(neighborhood_id, period)`,
	`CREATE INDEX IF NOT EXISTS idx_demographic_snapshots_neighborhood
		ON demographic_snapshots(neighborhood_id, year)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_neighborhood
		ON proposals(neighborhood_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_financial_projections_proposal
		ON financial_projections(proposal_id, year)`,
}

func (d *Database) RunMigrations() error {
	for _, stmt := range migrations {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
