package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cityscope/server/internal/models"
)

// Snapshot tables are append-only: a conflicting row for the same
// (neighborhood, period/year) is a historical fact already on record, so
// conflicts are dropped rather than overwritten.

type marketSnapshotRow struct {
	ID              int64 `gorm:"primaryKey"`
	NeighborhoodID  int64
	Period          string
	MedianSalePrice float64
	MedianRent      float64
	VacancyRatePct  float64
	PermitsIssued   int
}

func (marketSnapshotRow) TableName() string { return "market_snapshots" }

type demographicSnapshotRow struct {
	ID                  int64 `gorm:"primaryKey"`
	NeighborhoodID      int64
	Year                int
	Population          int
	MedianIncome        float64
	PopulationGrowthPct float64
	TransitScore        float64
}

func (demographicSnapshotRow) TableName() string { return "demographic_snapshots" }

// InsertMarketSnapshots appends a batch of market snapshots inside the
// given transaction, skipping periods already on record.
func InsertMarketSnapshots(tx *gorm.DB, batch []models.MarketSnapshot) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]marketSnapshotRow, 0, len(batch))
	for _, s := range batch {
		rows = append(rows, marketSnapshotRow{
			NeighborhoodID:  s.NeighborhoodID,
			Period:          s.Period.Format(periodLayout),
			MedianSalePrice: s.MedianSalePrice,
			MedianRent:      s.MedianRent,
			VacancyRatePct:  s.VacancyRatePct,
			PermitsIssued:   s.PermitsIssued,
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "neighborhood_id"}, {Name: "period"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// InsertDemographicSnapshots appends a batch of demographic snapshots
// inside the given transaction, skipping years already on record.
func InsertDemographicSnapshots(tx *gorm.DB, batch []models.DemographicSnapshot) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]demographicSnapshotRow, 0, len(batch))
	for _, s := range batch {
		rows = append(rows, demographicSnapshotRow{
			NeighborhoodID:      s.NeighborhoodID,
			Year:                s.Year,
			Population:          s.Population,
			MedianIncome:        s.MedianIncome,
			PopulationGrowthPct: s.PopulationGrowthPct,
			TransitScore:        s.TransitScore,
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "neighborhood_id"}, {Name: "year"}},
		DoNothing: true,
	}).Create(&rows).Error
}
