package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		analytics := api.Group("/analytics")
		{
			analytics.GET("/rankings", handler.GetRankings)
			analytics.GET("/trends", handler.GetTrends)
			analytics.GET("/dashboard", handler.GetDashboard)
		}

		api.GET("/map/overlay", handler.GetMapOverlay)

		api.GET("/neighborhoods", handler.GetNeighborhoods)
		api.GET("/neighborhoods/:id/market-history", handler.GetMarketHistory)

		proposals := api.Group("/proposals")
		{
			proposals.POST("", handler.CreateProposal)
			proposals.GET("/:id", handler.GetProposal)
			proposals.PUT("/:id", handler.UpdateProposal)
			proposals.PUT("/:id/unit-mix", handler.ReplaceUnitMix)
			proposals.POST("/:id/calculate-score", handler.CalculateScore)
			proposals.POST("/:id/generate-projections", handler.GenerateProjections)
			proposals.GET("/:id/projections", handler.GetProjections)
		}

		snapshots := api.Group("/snapshots")
		{
			snapshots.POST("/market", handler.IngestMarketSnapshots)
			snapshots.POST("/demographics", handler.IngestDemographicSnapshots)
		}
	}
}
