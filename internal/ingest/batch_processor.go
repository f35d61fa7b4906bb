package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cityscope/server/config"
	"cityscope/server/internal/database"
)

// BatchProcessor persists snapshot batches from the queue. Each batch is
// written in a single transaction with retry logic; rows already on record
// survive unchanged because the snapshot tables are append-only.
type BatchProcessor struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    *config.Config
	queue     *SnapshotQueue
	onIngest  func()
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewBatchProcessor(db *gorm.DB, queue *SnapshotQueue, cfg *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnIngest registers a callback invoked after every successfully persisted
// batch. The API layer uses it to invalidate derived-analytics caches.
// Must be called before Start.
func (p *BatchProcessor) OnIngest(fn func()) {
	p.onIngest = fn
}

// Start begins processing batches from the queue.
func (p *BatchProcessor) Start() {
	for i := 0; i < p.config.Ingest.ProcessorCount; i++ {
		p.waitGroup.Add(1)
		go p.processLoop()
	}
}

// Stop gracefully shuts down the processor.
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

func (p *BatchProcessor) processLoop() {
	defer p.waitGroup.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.queue.Done():
			return
		case batch := <-p.queue.Batches():
			if err := p.processBatch(batch); err != nil {
				p.logger.WithError(err).Error("Snapshot batch abandoned")
			} else if p.onIngest != nil {
				p.onIngest()
			}
		}
	}
}

// processBatch persists a single batch with transaction and retry logic.
func (p *BatchProcessor) processBatch(batch Batch) error {
	var err error
	for attempt := 0; attempt <= p.config.Ingest.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying snapshot batch, attempt %d of %d", attempt, p.config.Ingest.MaxRetries)
			select {
			case <-p.ctx.Done():
				return p.ctx.Err()
			case <-time.After(time.Duration(p.config.Ingest.RetryDelay) * time.Second):
			}
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := database.InsertMarketSnapshots(tx, batch.Market); err != nil {
				return fmt.Errorf("failed to insert market snapshots: %w", err)
			}
			if err := database.InsertDemographicSnapshots(tx, batch.Demographics); err != nil {
				return fmt.Errorf("failed to insert demographic snapshots: %w", err)
			}
			return nil
		})

		if err == nil {
			p.logger.Infof("Successfully processed snapshot batch of %d rows", batch.size())
			return nil
		}

		p.logger.Errorf("Snapshot batch processing failed: %v", err)
	}

	return fmt.Errorf("failed to process snapshot batch after %d attempts: %w", p.config.Ingest.MaxRetries, err)
}
