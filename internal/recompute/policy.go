package recompute

import "cityscope/server/internal/models"

// ShouldRecompute reports whether an edit to an existing proposal requires
// a feasibility recompute: exactly when lot_size_sqft, total_units, or the
// neighborhood changes. Creation never triggers a recompute; a new proposal
// carries no score until one is explicitly requested.
func ShouldRecompute(old, updated models.Proposal) bool {
	return old.LotSizeSqft != updated.LotSizeSqft ||
		old.TotalUnits != updated.TotalUnits ||
		old.NeighborhoodID != updated.NeighborhoodID
}
