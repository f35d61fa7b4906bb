package ingest

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"cityscope/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("ingest queue is full")
	ErrQueueClosed = errors.New("ingest queue is closed")
)

// Batch is one ingest submission: a set of market or demographic snapshot
// rows accepted at the API boundary and persisted asynchronously. Exactly
// one of the two slices is populated.
type Batch struct {
	Market       []models.MarketSnapshot
	Demographics []models.DemographicSnapshot
}

func (b Batch) size() int {
	return len(b.Market) + len(b.Demographics)
}

// SnapshotQueue is an in-memory queue for snapshot batches.
type SnapshotQueue struct {
	batches chan Batch
	done    chan struct{}
	maxSize int
	closed  bool
	mu      sync.RWMutex
	logger  *logrus.Logger
}

func NewSnapshotQueue(bufferSize int, logger *logrus.Logger) *SnapshotQueue {
	return &SnapshotQueue{
		batches: make(chan Batch, bufferSize),
		done:    make(chan struct{}),
		maxSize: bufferSize,
		logger:  logger,
	}
}

// Push adds a batch to the queue without blocking.
func (q *SnapshotQueue) Push(batch Batch) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.batches <- batch:
		q.logger.WithField("batch_size", batch.size()).Debug("Pushed snapshot batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Batches exposes the batch stream for processors.
func (q *SnapshotQueue) Batches() <-chan Batch {
	return q.batches
}

// Done is closed when the queue shuts down.
func (q *SnapshotQueue) Done() <-chan struct{} {
	return q.done
}

// Close stops the queue and prevents new batches from being added.
func (q *SnapshotQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// Len returns the current number of pending batches.
func (q *SnapshotQueue) Len() int {
	return len(q.batches)
}

// IsClosed returns whether the queue has been closed.
func (q *SnapshotQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
