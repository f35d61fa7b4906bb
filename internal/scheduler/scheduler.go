package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cityscope/server/config"
)

// Warmer recomputes cached analytics payloads.
type Warmer interface {
	WarmCache(ctx context.Context) error
}

// Scheduler periodically rewarms the analytics cache so the rankings,
// trends, and dashboard payloads stay hot between invalidations.
type Scheduler struct {
	warmer   Warmer
	config   *config.Config
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(warmer Warmer, cfg *config.Config, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		warmer:   warmer,
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduled rewarm loop, including one startup run.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.logger.Info("Running startup cache warmup")
	s.warm()

	interval := time.Duration(s.config.Cache.RefreshInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.warm()
		}
	}
}

func (s *Scheduler) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := s.warmer.WarmCache(ctx); err != nil {
		s.logger.WithError(err).Error("Cache warmup failed")
		return
	}
	s.logger.WithField("duration", time.Since(start).String()).Info("Cache warmup completed")
}
