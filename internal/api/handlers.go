package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cityscope/server/config"
	"cityscope/server/internal/analytics"
	"cityscope/server/internal/database"
	"cityscope/server/internal/geometry"
	"cityscope/server/internal/ingest"
	"cityscope/server/internal/models"
	"cityscope/server/internal/recompute"
)

const (
	cacheKeyRankings  = "rankings"
	cacheKeyDashboard = "dashboard"
	cacheKeyTrends    = "trends:" // suffixed with the neighborhood id
)

const periodLayout = "2006-01-02"

type Handler struct {
	db             *database.Database
	engine         *analytics.Engine
	recomputeQueue *recompute.Queue
	ingestQueue    *ingest.SnapshotQueue
	boroughManager *geometry.BoroughManager
	cache          *Cache
	config         *config.Config
	logger         *logrus.Logger
}

func NewHandler(db *database.Database, engine *analytics.Engine, recomputeQueue *recompute.Queue,
	ingestQueue *ingest.SnapshotQueue, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:             db,
		engine:         engine,
		recomputeQueue: recomputeQueue,
		ingestQueue:    ingestQueue,
		boroughManager: geometry.NewBoroughManager(logger),
		cache:          NewCache(),
		config:         cfg,
		logger:         logger,
	}
}

// Cache exposes the handler cache so the ingest pipeline and the scheduler
// can invalidate and rewarm it.
func (h *Handler) Cache() *Cache {
	return h.cache
}

// WarmCache recomputes the heavily-read analytics payloads and primes the
// cache, so the first request after a cold start or an invalidation does not
// pay the computation cost.
func (h *Handler) WarmCache(ctx context.Context) error {
	rankings, err := h.engine.ComputeRankings(ctx)
	if err != nil {
		return err
	}
	h.cache.Set(cacheKeyRankings, rankings, h.ttl(h.config.Cache.RankingsTTL))

	trends, err := h.engine.ComputeTrends(ctx, 0)
	if err != nil {
		return err
	}
	h.cache.Set(cacheKeyTrends+"0", trends, h.ttl(h.config.Cache.TrendsTTL))

	summaries, err := h.db.BoroughSummaries(ctx)
	if err != nil {
		return err
	}
	h.cache.Set(cacheKeyDashboard, summaries, h.ttl(h.config.Cache.DashboardTTL))
	return nil
}

// respondError maps domain errors onto HTTP statuses: invalid input is the
// caller's fault, a missing entity is 404, anything else is 500.
func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	var verr *analytics.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	var nfe *analytics.NotFoundError
	if errors.As(err, &nfe) {
		c.JSON(http.StatusNotFound, gin.H{"error": nfe.Error()})
		return
	}
	h.logger.WithError(err).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) ttl(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// GetRankings returns every neighborhood scored and ranked.
func (h *Handler) GetRankings(c *gin.Context) {
	if cached, ok := h.cache.Get(cacheKeyRankings); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	rankings, err := h.engine.ComputeRankings(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to compute rankings")
		return
	}

	h.cache.Set(cacheKeyRankings, rankings, h.ttl(h.config.Cache.RankingsTTL))
	c.JSON(http.StatusOK, rankings)
}

// GetTrends returns period-over-period market deltas, optionally filtered
// by neighborhood_id.
func (h *Handler) GetTrends(c *gin.Context) {
	var neighborhoodID int64
	if raw := c.Query("neighborhood_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid neighborhood_id"})
			return
		}
		neighborhoodID = id
	}

	key := cacheKeyTrends + strconv.FormatInt(neighborhoodID, 10)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	trends, err := h.engine.ComputeTrends(c.Request.Context(), neighborhoodID)
	if err != nil {
		h.respondError(c, err, "Failed to compute trends")
		return
	}

	h.cache.Set(key, trends, h.ttl(h.config.Cache.TrendsTTL))
	c.JSON(http.StatusOK, trends)
}

// GetDashboard returns the per-borough proposal summary.
func (h *Handler) GetDashboard(c *gin.Context) {
	if cached, ok := h.cache.Get(cacheKeyDashboard); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	summaries, err := h.db.BoroughSummaries(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to get dashboard summary")
		return
	}

	h.cache.Set(cacheKeyDashboard, summaries, h.ttl(h.config.Cache.DashboardTTL))
	c.JSON(http.StatusOK, summaries)
}

// GetMapOverlay returns the demand overlay plus borough hull geometry for
// the opportunity map.
func (h *Handler) GetMapOverlay(c *gin.Context) {
	overlay, err := h.engine.ComputeDemandOverlay(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to compute demand overlay")
		return
	}

	neighborhoods, err := h.db.Neighborhoods(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to get neighborhoods")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"demand":   overlay,
		"boroughs": h.boroughManager.BuildHulls(neighborhoods),
	})
}

func (h *Handler) GetNeighborhoods(c *gin.Context) {
	neighborhoods, err := h.db.Neighborhoods(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to get neighborhoods")
		return
	}
	c.JSON(http.StatusOK, neighborhoods)
}

func (h *Handler) GetMarketHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	history, err := h.db.MarketHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get market history")
		return
	}
	c.JSON(http.StatusOK, history)
}

type proposalRequest struct {
	Owner            string   `json:"owner"`
	NeighborhoodID   int64    `json:"neighborhood_id" binding:"required"`
	Title            string   `json:"title" binding:"required"`
	Description      string   `json:"description"`
	Status           string   `json:"status"`
	LotSizeSqft      float64  `json:"lot_size_sqft" binding:"required"`
	TotalUnits       int      `json:"total_units" binding:"required"`
	EstimatedCost    *float64 `json:"estimated_cost"`
	ProjectedRevenue *float64 `json:"projected_revenue"`
}

// CreateProposal inserts a new draft proposal. Creation never computes a
// feasibility score; the score stays null until explicitly requested.
func (h *Handler) CreateProposal(c *gin.Context) {
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	id, err := h.db.CreateProposal(c.Request.Context(), models.Proposal{
		Owner:            req.Owner,
		NeighborhoodID:   req.NeighborhoodID,
		Title:            req.Title,
		Description:      req.Description,
		Status:           req.Status,
		LotSizeSqft:      req.LotSizeSqft,
		TotalUnits:       req.TotalUnits,
		EstimatedCost:    req.EstimatedCost,
		ProjectedRevenue: req.ProjectedRevenue,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create proposal")
		return
	}

	created, mix, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to read created proposal")
		return
	}

	h.cache.Invalidate(cacheKeyDashboard)
	c.JSON(http.StatusCreated, gin.H{"proposal": created, "unit_mix": mix})
}

func (h *Handler) GetProposal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	proposal, mix, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal, "unit_mix": mix})
}

// UpdateProposal writes new scalar fields, bumps the version, records a
// status transition when one happened, and enqueues a feasibility recompute
// when a score-relevant field changed.
func (h *Handler) UpdateProposal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	old, mix, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}

	// A unit mix on record pins total_units; editing it out from under the
	// mix would leave unaccounted units.
	if len(mix) > 0 && req.TotalUnits != unitMixTotal(mix) {
		h.respondError(c, &analytics.ValidationError{
			Field:  "total_units",
			Reason: "must match the unit mix counts on record",
		}, "")
		return
	}

	updated, err := h.db.UpdateProposal(c.Request.Context(), models.Proposal{
		ID:               id,
		NeighborhoodID:   req.NeighborhoodID,
		Title:            req.Title,
		Description:      req.Description,
		Status:           req.Status,
		LotSizeSqft:      req.LotSizeSqft,
		TotalUnits:       req.TotalUnits,
		EstimatedCost:    req.EstimatedCost,
		ProjectedRevenue: req.ProjectedRevenue,
	}, req.Owner)
	if err != nil {
		h.respondError(c, err, "Failed to update proposal")
		return
	}

	if recompute.ShouldRecompute(*old, *updated) {
		job := recompute.Job{ProposalID: id, Version: updated.Version, Kind: recompute.KindFeasibility}
		if err := h.recomputeQueue.Push(job); err != nil {
			h.logger.WithError(err).WithField("proposal_id", id).
				Warn("Failed to enqueue feasibility recompute")
		}
	}

	h.cache.Invalidate(cacheKeyDashboard)
	c.JSON(http.StatusOK, gin.H{"proposal": updated})
}

type unitMixRequest struct {
	UnitMix []models.UnitMixEntry `json:"unit_mix" binding:"required"`
}

func unitMixTotal(mix []models.UnitMixEntry) int {
	total := 0
	for _, u := range mix {
		total += u.Count
	}
	return total
}

// ReplaceUnitMix swaps a proposal's unit mix wholesale. A non-empty mix
// must account for every unit: the counts have to sum to the proposal's
// total_units.
func (h *Handler) ReplaceUnitMix(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req unitMixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	proposal, _, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}

	if len(req.UnitMix) > 0 && unitMixTotal(req.UnitMix) != proposal.TotalUnits {
		h.respondError(c, &analytics.ValidationError{
			Field:  "unit_mix",
			Reason: "counts must sum to the proposal's total_units",
		}, "")
		return
	}

	if err := h.db.ReplaceUnitMix(c.Request.Context(), id, req.UnitMix); err != nil {
		h.respondError(c, err, "Failed to replace unit mix")
		return
	}

	proposal, mix, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to read proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal, "unit_mix": mix})
}

// CalculateScore enqueues an async feasibility computation and returns 202.
// The stored score is updated when the worker finishes; a concurrent edit
// supersedes the result.
func (h *Handler) CalculateScore(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	proposal, _, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}

	job := recompute.Job{ProposalID: id, Version: proposal.Version, Kind: recompute.KindFeasibility}
	if err := h.recomputeQueue.Push(job); err != nil {
		h.logger.WithError(err).WithField("proposal_id", id).Error("Failed to enqueue score calculation")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recompute queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "proposal_id": id, "version": proposal.Version})
}

type projectionRequest struct {
	Years int `json:"years"`
}

// GenerateProjections validates the proposal's financial inputs, then
// enqueues an async projection run. Years beyond the configured maximum are
// capped rather than rejected.
func (h *Handler) GenerateProjections(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	req := projectionRequest{Years: h.config.Projection.DefaultYears}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
			return
		}
	}
	if req.Years <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "years must be positive", "field": "years"})
		return
	}
	if req.Years > h.config.Projection.MaxYears {
		req.Years = h.config.Projection.MaxYears
	}

	proposal, mix, err := h.db.Proposal(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}
	if proposal.EstimatedCost == nil {
		h.respondError(c, &analytics.ValidationError{Field: "estimated_cost", Reason: "must be set before projecting"}, "")
		return
	}
	if len(mix) == 0 {
		h.respondError(c, &analytics.ValidationError{Field: "unit_mix", Reason: "must be non-empty before projecting"}, "")
		return
	}

	job := recompute.Job{ProposalID: id, Version: proposal.Version, Kind: recompute.KindProjection, Years: req.Years}
	if err := h.recomputeQueue.Push(job); err != nil {
		h.logger.WithError(err).WithField("proposal_id", id).Error("Failed to enqueue projection run")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recompute queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "proposal_id": id, "years": req.Years})
}

func (h *Handler) GetProjections(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, _, err := h.db.Proposal(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}

	rows, err := h.db.Projections(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get projections")
		return
	}
	c.JSON(http.StatusOK, rows)
}

type marketSnapshotRequest struct {
	NeighborhoodID  int64   `json:"neighborhood_id" binding:"required"`
	Period          string  `json:"period" binding:"required"`
	MedianSalePrice float64 `json:"median_sale_price"`
	MedianRent      float64 `json:"median_rent"`
	VacancyRatePct  float64 `json:"vacancy_rate_pct"`
	PermitsIssued   int     `json:"permits_issued"`
}

// IngestMarketSnapshots accepts a batch of market snapshots and queues it
// for asynchronous persistence. Periods already on record are kept as-is.
func (h *Handler) IngestMarketSnapshots(c *gin.Context) {
	var reqs []marketSnapshotRequest
	if err := c.ShouldBindJSON(&reqs); err != nil || len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	batch := make([]models.MarketSnapshot, 0, len(reqs))
	for _, r := range reqs {
		period, err := time.Parse(periodLayout, r.Period)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be formatted YYYY-MM-DD", "field": "period"})
			return
		}
		batch = append(batch, models.MarketSnapshot{
			NeighborhoodID:  r.NeighborhoodID,
			Period:          period,
			MedianSalePrice: r.MedianSalePrice,
			MedianRent:      r.MedianRent,
			VacancyRatePct:  r.VacancyRatePct,
			PermitsIssued:   r.PermitsIssued,
		})
	}

	if err := h.ingestQueue.Push(ingest.Batch{Market: batch}); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue market snapshot batch")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingest queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "rows": len(batch)})
}

type demographicSnapshotRequest struct {
	NeighborhoodID      int64   `json:"neighborhood_id" binding:"required"`
	Year                int     `json:"year" binding:"required"`
	Population          int     `json:"population"`
	MedianIncome        float64 `json:"median_income"`
	PopulationGrowthPct float64 `json:"population_growth_pct"`
	TransitScore        float64 `json:"transit_score"`
}

// IngestDemographicSnapshots accepts a batch of demographic snapshots and
// queues it for asynchronous persistence.
func (h *Handler) IngestDemographicSnapshots(c *gin.Context) {
	var reqs []demographicSnapshotRequest
	if err := c.ShouldBindJSON(&reqs); err != nil || len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	batch := make([]models.DemographicSnapshot, 0, len(reqs))
	for _, r := range reqs {
		batch = append(batch, models.DemographicSnapshot{
			NeighborhoodID:      r.NeighborhoodID,
			Year:                r.Year,
			Population:          r.Population,
			MedianIncome:        r.MedianIncome,
			PopulationGrowthPct: r.PopulationGrowthPct,
			TransitScore:        r.TransitScore,
		})
	}

	if err := h.ingestQueue.Push(ingest.Batch{Demographics: batch}); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue demographic snapshot batch")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingest queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "rows": len(batch)})
}
