package recompute

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cityscope/server/config"
	"cityscope/server/internal/analytics"
	"cityscope/server/internal/database"
	"cityscope/server/internal/models"
)

// Store is the version-guarded write interface the workers persist through.
type Store interface {
	SetFeasibilityScore(ctx context.Context, proposalID int64, score decimal.Decimal, version int64) error
	ReplaceProjections(ctx context.Context, proposalID int64, version int64, rows []models.FinancialProjectionYear) error
}

// Worker drains the recompute queue, runs the engine, and persists results
// through the optimistic write path. Validation and not-found failures are
// terminal; computation failures are retried with a delay up to the
// configured bound.
type Worker struct {
	engine    *analytics.Engine
	store     Store
	queue     *Queue
	config    *config.Config
	logger    *logrus.Logger
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewWorker(engine *analytics.Engine, store Store, queue *Queue, cfg *config.Config, logger *logrus.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		engine: engine,
		store:  store,
		queue:  queue,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the configured number of worker goroutines.
func (w *Worker) Start() {
	for i := 0; i < w.config.Recompute.WorkerCount; i++ {
		w.waitGroup.Add(1)
		go w.processLoop()
	}
}

// Stop gracefully shuts down the workers.
func (w *Worker) Stop() {
	w.cancel()
	w.waitGroup.Wait()
}

func (w *Worker) processLoop() {
	defer w.waitGroup.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.queue.Done():
			return
		case job := <-w.queue.Jobs():
			w.processJob(job)
		}
	}
}

// processJob runs one job with retry logic. A stale-write rejection is a
// success from the worker's perspective: a fresher result already landed.
func (w *Worker) processJob(job Job) {
	fields := logrus.Fields{
		"proposal_id": job.ProposalID,
		"kind":        job.Kind.String(),
		"version":     job.Version,
	}

	var err error
	for attempt := 0; attempt <= w.config.Recompute.MaxRetries; attempt++ {
		if attempt > 0 {
			w.logger.WithFields(fields).Infof("Retrying recompute, attempt %d of %d",
				attempt, w.config.Recompute.MaxRetries)
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(time.Duration(w.config.Recompute.RetryDelay) * time.Second):
			}
		}

		err = w.runOnce(job)
		if err == nil {
			w.logger.WithFields(fields).Info("Recompute completed")
			return
		}
		if errors.Is(err, database.ErrStaleWrite) {
			w.logger.WithFields(fields).Info("Recompute superseded by newer edit")
			return
		}
		if isTerminal(err) {
			w.logger.WithFields(fields).WithError(err).Warn("Recompute rejected")
			return
		}

		w.logger.WithFields(fields).WithError(err).Error("Recompute failed")
	}

	w.logger.WithFields(fields).WithError(err).Errorf(
		"Recompute abandoned after %d attempts", w.config.Recompute.MaxRetries)
}

func (w *Worker) runOnce(job Job) error {
	switch job.Kind {
	case KindProjection:
		rows, version, err := w.engine.GenerateProjections(w.ctx, job.ProposalID, job.Years)
		if err != nil {
			return err
		}
		return w.store.ReplaceProjections(w.ctx, job.ProposalID, version, rows)
	default:
		score, version, err := w.engine.ComputeFeasibility(w.ctx, job.ProposalID)
		if err != nil {
			return err
		}
		return w.store.SetFeasibilityScore(w.ctx, job.ProposalID, score, version)
	}
}

// isTerminal reports whether an error should not be retried: the inputs
// are wrong, not the computation.
func isTerminal(err error) bool {
	var verr *analytics.ValidationError
	var nfe *analytics.NotFoundError
	return errors.As(err, &verr) || errors.As(err, &nfe)
}
