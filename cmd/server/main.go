package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cityscope/server/config"
	"cityscope/server/internal/analytics"
	"cityscope/server/internal/api"
	"cityscope/server/internal/database"
	"cityscope/server/internal/ingest"
	"cityscope/server/internal/recompute"
	"cityscope/server/internal/scheduler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Infof("Using database at: %s", cfg.Server.DatabasePath)
	db, err := database.NewDatabase(cfg.Server.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	engine := analytics.NewEngine(db, analytics.ProjectionConfig{
		RevenueGrowthPct: cfg.Projection.RevenueGrowthPct,
		ExpenseGrowthPct: cfg.Projection.ExpenseGrowthPct,
		ExpenseRatioPct:  cfg.Projection.ExpenseRatioPct,
	}, logger)

	// Async recompute pipeline: feasibility scores and projection runs.
	recomputeQueue := recompute.NewQueue(cfg.Recompute.QueueSize, logger)
	worker := recompute.NewWorker(engine, db, recomputeQueue, cfg, logger)
	worker.Start()
	defer worker.Stop()

	// Snapshot ingest pipeline.
	ingestQueue := ingest.NewSnapshotQueue(cfg.Ingest.QueueSize, logger)
	processor := ingest.NewBatchProcessor(db.Gorm(), ingestQueue, cfg, logger)

	handler := api.NewHandler(db, engine, recomputeQueue, ingestQueue, cfg, logger)

	// Any persisted snapshot can shift every derived payload at once.
	processor.OnIngest(handler.Cache().Clear)
	processor.Start()
	defer processor.Stop()

	cacheScheduler := scheduler.NewScheduler(handler, cfg, logger)
	cacheScheduler.Start()
	defer cacheScheduler.Stop()

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))
	api.SetupRoutes(router, handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on %s", addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- router.Run(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Fatal("Server failed to start")
	case sig := <-quit:
		logger.Infof("Received %s, shutting down", sig)
		recomputeQueue.Close()
		ingestQueue.Close()
	}
}
