package analytics

import (
	"context"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cityscope/server/internal/models"
)

// Reader is the pre-fetch interface the engine computes over. The engine
// performs no blocking I/O of its own beyond these reads; every computation
// is a pure function of what the Reader returns.
type Reader interface {
	// NeighborhoodContexts returns the latest snapshot context for every
	// neighborhood, including those with no history.
	NeighborhoodContexts(ctx context.Context) ([]NeighborhoodContext, error)

	// NeighborhoodContext returns the context for one neighborhood, or a
	// NotFoundError.
	NeighborhoodContext(ctx context.Context, neighborhoodID int64) (*NeighborhoodContext, error)

	// MarketHistory returns the full market series, oldest first, for one
	// neighborhood, or for all neighborhoods when id is 0.
	MarketHistory(ctx context.Context, neighborhoodID int64) ([]models.MarketSnapshot, error)

	// NeighborhoodNames maps neighborhood ids to display names.
	NeighborhoodNames(ctx context.Context) (map[int64]string, error)

	// Proposal returns a proposal's scalar fields and unit mix, or a
	// NotFoundError.
	Proposal(ctx context.Context, proposalID int64) (*models.Proposal, []models.UnitMixEntry, error)
}

// Engine is the derived-analytics engine. All methods are safe for
// concurrent use: they share no mutable state and recompute from the
// Reader's snapshot on every call.
type Engine struct {
	store  Reader
	cfg    ProjectionConfig
	logger *logrus.Logger
}

func NewEngine(store Reader, cfg ProjectionConfig, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Engine{store: store, cfg: cfg, logger: logger}
}

// ComputeRankings returns every neighborhood scored, ranked, and bucketed
// into quartiles.
func (e *Engine) ComputeRankings(ctx context.Context) ([]models.NeighborhoodRanking, error) {
	contexts, err := e.store.NeighborhoodContexts(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeRankings(contexts), nil
}

// ComputeTrends returns period-over-period market deltas, optionally
// filtered to one neighborhood (0 selects all).
func (e *Engine) ComputeTrends(ctx context.Context, neighborhoodID int64) ([]models.MarketTrend, error) {
	snapshots, err := e.store.MarketHistory(ctx, neighborhoodID)
	if err != nil {
		return nil, err
	}
	names, err := e.store.NeighborhoodNames(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeTrends(snapshots, names), nil
}

// ComputeDemandOverlay returns the per-neighborhood demand and zoning
// summary for the opportunity map.
func (e *Engine) ComputeDemandOverlay(ctx context.Context) ([]models.DemandOverlay, error) {
	contexts, err := e.store.NeighborhoodContexts(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeDemandOverlay(contexts), nil
}

// ComputeFeasibility loads a proposal and its neighborhood context and
// scores it. The returned version is the proposal version observed during
// the read; writers use it to discard stale results.
func (e *Engine) ComputeFeasibility(ctx context.Context, proposalID int64) (decimal.Decimal, int64, error) {
	proposal, mix, err := e.store.Proposal(ctx, proposalID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	nctx, err := e.store.NeighborhoodContext(ctx, proposal.NeighborhoodID)
	if err != nil {
		return decimal.Zero, 0, err
	}

	score, err := Feasibility(*proposal, mix, *nctx)
	if err != nil {
		return decimal.Zero, 0, err
	}

	e.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"score":       score.String(),
		"version":     proposal.Version,
	}).Debug("Computed feasibility score")
	return score, proposal.Version, nil
}

// GenerateProjections loads a proposal and simulates the requested number
// of years. The returned version tags the input snapshot for the writer.
func (e *Engine) GenerateProjections(ctx context.Context, proposalID int64, years int) ([]models.FinancialProjectionYear, int64, error) {
	proposal, mix, err := e.store.Proposal(ctx, proposalID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := Project(*proposal, mix, years, e.cfg)
	if err != nil {
		return nil, 0, err
	}
	return rows, proposal.Version, nil
}
