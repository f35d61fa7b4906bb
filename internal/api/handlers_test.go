package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityscope/server/config"
	"cityscope/server/internal/analytics"
	"cityscope/server/internal/database"
	"cityscope/server/internal/ingest"
	"cityscope/server/internal/models"
	"cityscope/server/internal/recompute"
)

type testServer struct {
	router         *gin.Engine
	db             *database.Database
	recomputeQueue *recompute.Queue
	ingestQueue    *ingest.SnapshotQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Cache.RankingsTTL = 900
	cfg.Cache.TrendsTTL = 600
	cfg.Cache.DashboardTTL = 300
	cfg.Projection.MaxYears = 10
	cfg.Projection.DefaultYears = 10

	recomputeQueue := recompute.NewQueue(8, logger)
	ingestQueue := ingest.NewSnapshotQueue(8, logger)
	engine := analytics.NewEngine(db, analytics.DefaultProjectionConfig(), logger)

	handler := NewHandler(db, engine, recomputeQueue, ingestQueue, cfg, logger)
	router := gin.New()
	SetupRoutes(router, handler)

	return &testServer{
		router:         router,
		db:             db,
		recomputeQueue: recomputeQueue,
		ingestQueue:    ingestQueue,
	}
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedNeighborhood(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	boroughID, err := s.db.CreateBorough(ctx, "Queens", "QN")
	require.NoError(t, err)
	id, err := s.db.CreateNeighborhood(ctx, models.Neighborhood{
		BoroughID: boroughID,
		Name:      "Astoria",
		Latitude:  40.7644,
		Longitude: -73.9235,
	})
	require.NoError(t, err)
	return id
}

func (s *testServer) seedProposal(t *testing.T, neighborhoodID int64, cost *float64) int64 {
	t.Helper()
	id, err := s.db.CreateProposal(context.Background(), models.Proposal{
		Owner:          "dev@example.com",
		NeighborhoodID: neighborhoodID,
		Title:          "Astoria Lofts",
		LotSizeSqft:    10000,
		TotalUnits:     20,
		EstimatedCost:  cost,
	})
	require.NoError(t, err)
	return id
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetRankings_Empty(t *testing.T) {
	s := newTestServer(t)
	w := s.request(t, http.MethodGet, "/api/analytics/rankings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetRankings_ScoredNeighborhood(t *testing.T) {
	s := newTestServer(t)
	s.seedNeighborhood(t)

	w := s.request(t, http.MethodGet, "/api/analytics/rankings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rankings []models.NeighborhoodRanking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rankings))
	require.Len(t, rankings, 1)
	assert.Equal(t, 1, rankings[0].OverallRank)
	assert.Equal(t, "Astoria", rankings[0].NeighborhoodName)
	// No snapshots at all: every component contributes zero except the base.
	assert.Equal(t, 100.0, rankings[0].DevelopmentScore)
}

func TestGetTrends_InvalidNeighborhoodID(t *testing.T) {
	s := newTestServer(t)
	w := s.request(t, http.MethodGet, "/api/analytics/trends?neighborhood_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProposal(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)

	w := s.request(t, http.MethodPost, "/api/proposals", gin.H{
		"neighborhood_id": nid,
		"title":           "Astoria Lofts",
		"lot_size_sqft":   10000,
		"total_units":     20,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	proposal := body["proposal"].(map[string]interface{})
	assert.Equal(t, "Astoria Lofts", proposal["title"])
	assert.Equal(t, models.StatusDraft, proposal["status"])
	assert.Equal(t, float64(1), proposal["version"])
	assert.Nil(t, proposal["feasibility_score"], "creation must not compute a score")
}

func TestCreateProposal_MissingTitle(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)

	w := s.request(t, http.MethodPost, "/api/proposals", gin.H{
		"neighborhood_id": nid,
		"lot_size_sqft":   10000,
		"total_units":     20,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProposal_NotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.request(t, http.MethodGet, "/api/proposals/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCalculateScore_Enqueues(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	pid := s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodPost, "/api/proposals/1/calculate-score", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, s.recomputeQueue.Len())

	body := decodeBody(t, w)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, float64(pid), body["proposal_id"])
}

func TestGenerateProjections_RequiresCost(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodPost, "/api/proposals/1/generate-projections", gin.H{"years": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "estimated_cost", decodeBody(t, w)["field"])
}

func TestGenerateProjections_RequiresUnitMix(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	cost := 12000000.0
	s.seedProposal(t, nid, &cost)

	w := s.request(t, http.MethodPost, "/api/proposals/1/generate-projections", gin.H{"years": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unit_mix", decodeBody(t, w)["field"])
}

func TestGenerateProjections_CapsYears(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	cost := 12000000.0
	pid := s.seedProposal(t, nid, &cost)
	require.NoError(t, s.db.ReplaceUnitMix(context.Background(), pid, []models.UnitMixEntry{
		{UnitType: models.UnitOneBR, Count: 20, AvgSqft: 650, ProjectedRent: 2000},
	}))

	w := s.request(t, http.MethodPost, "/api/proposals/1/generate-projections", gin.H{"years": 50})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(10), decodeBody(t, w)["years"])
	assert.Equal(t, 1, s.recomputeQueue.Len())
}

func TestGenerateProjections_RejectsNonPositiveYears(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	cost := 12000000.0
	s.seedProposal(t, nid, &cost)

	w := s.request(t, http.MethodPost, "/api/proposals/1/generate-projections", gin.H{"years": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProposal_TriggersRecomputeOnLotSizeChange(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodPut, "/api/proposals/1", gin.H{
		"neighborhood_id": nid,
		"title":           "Astoria Lofts",
		"status":          models.StatusDraft,
		"lot_size_sqft":   12000,
		"total_units":     20,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.recomputeQueue.Len(), "lot size change must enqueue a recompute")

	proposal := decodeBody(t, w)["proposal"].(map[string]interface{})
	assert.Equal(t, float64(2), proposal["version"])
}

func TestUpdateProposal_NoRecomputeOnTitleChange(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodPut, "/api/proposals/1", gin.H{
		"neighborhood_id": nid,
		"title":           "Astoria Heights",
		"status":          models.StatusDraft,
		"lot_size_sqft":   10000,
		"total_units":     20,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, s.recomputeQueue.Len(), "a cosmetic edit must not enqueue a recompute")
}

func TestIngestMarketSnapshots(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)

	w := s.request(t, http.MethodPost, "/api/snapshots/market", []gin.H{
		{"neighborhood_id": nid, "period": "2026-01-01", "median_sale_price": 750000, "median_rent": 2400},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, s.ingestQueue.Len())
}

func TestIngestMarketSnapshots_BadPeriod(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)

	w := s.request(t, http.MethodPost, "/api/snapshots/market", []gin.H{
		{"neighborhood_id": nid, "period": "January 2026"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.ingestQueue.Len())
}

func TestIngestDemographicSnapshots(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)

	w := s.request(t, http.MethodPost, "/api/snapshots/demographics", []gin.H{
		{"neighborhood_id": nid, "year": 2025, "population": 95000, "median_income": 72000},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, s.ingestQueue.Len())
}

func TestGetMapOverlay(t *testing.T) {
	s := newTestServer(t)
	s.seedNeighborhood(t)

	w := s.request(t, http.MethodGet, "/api/map/overlay", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body, "demand")
	assert.Contains(t, body, "boroughs")
}

func TestGetDashboard(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodGet, "/api/analytics/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []models.BoroughSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Queens", summaries[0].BoroughName)
	assert.Equal(t, 1, summaries[0].TotalProposals)
}

func TestReplaceUnitMix_RejectsCountMismatch(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodPut, "/api/proposals/1/unit-mix", gin.H{
		"unit_mix": []gin.H{
			{"unit_type": models.UnitStudio, "count": 5, "avg_sqft": 450, "projected_rent": 1800},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unit_mix", decodeBody(t, w)["field"])

	// The mismatched mix must not have been persisted.
	w = s.request(t, http.MethodGet, "/api/proposals/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeBody(t, w)["unit_mix"])
}

func TestReplaceUnitMix_CountsMatchingTotalUnits(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodPut, "/api/proposals/1/unit-mix", gin.H{
		"unit_mix": []gin.H{
			{"unit_type": models.UnitOneBR, "count": 15, "avg_sqft": 650, "projected_rent": 2000},
			{"unit_type": models.UnitFourBR, "count": 5, "avg_sqft": 1400, "projected_rent": 4200},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	mix := decodeBody(t, w)["unit_mix"].([]interface{})
	require.Len(t, mix, 2)
	top := mix[1].(map[string]interface{})
	assert.Equal(t, "4br+", top["unit_type"])
}

func TestUpdateProposal_RejectsTotalUnitsBreakingMix(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	pid := s.seedProposal(t, nid, nil)
	require.NoError(t, s.db.ReplaceUnitMix(context.Background(), pid, []models.UnitMixEntry{
		{UnitType: models.UnitOneBR, Count: 20, AvgSqft: 650, ProjectedRent: 2000},
	}))

	w := s.request(t, http.MethodPut, "/api/proposals/1", gin.H{
		"neighborhood_id": nid,
		"title":           "Astoria Lofts",
		"status":          models.StatusDraft,
		"lot_size_sqft":   10000,
		"total_units":     25,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "total_units", decodeBody(t, w)["field"])
	assert.Equal(t, 0, s.recomputeQueue.Len(), "a rejected edit must not enqueue a recompute")
}

func TestGetMarketHistory_NoRowsIsArray(t *testing.T) {
	s := newTestServer(t)
	s.seedNeighborhood(t)

	w := s.request(t, http.MethodGet, "/api/neighborhoods/1/market-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetProjections_NoRowsIsArray(t *testing.T) {
	s := newTestServer(t)
	nid := s.seedNeighborhood(t)
	s.seedProposal(t, nid, nil)

	w := s.request(t, http.MethodGet, "/api/proposals/1/projections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
