package recompute

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("recompute queue is full")
	ErrQueueClosed = errors.New("recompute queue is closed")
)

// Kind selects which computation a job runs.
type Kind int

const (
	KindFeasibility Kind = iota
	KindProjection
)

func (k Kind) String() string {
	switch k {
	case KindFeasibility:
		return "feasibility"
	case KindProjection:
		return "projection"
	default:
		return "unknown"
	}
}

// Job is one queued recompute request. Version is the proposal version
// observed when the job was enqueued; the write path uses it to discard
// results that a newer edit has overtaken.
type Job struct {
	ProposalID int64
	Version    int64
	Kind       Kind
	Years      int
}

// Queue is an in-memory queue of recompute jobs. Enqueueing is
// fire-and-forget: callers never block waiting for a result.
type Queue struct {
	jobs    chan Job
	done    chan struct{}
	maxSize int
	closed  bool
	mu      sync.RWMutex
	logger  *logrus.Logger
}

func NewQueue(bufferSize int, logger *logrus.Logger) *Queue {
	return &Queue{
		jobs:    make(chan Job, bufferSize),
		done:    make(chan struct{}),
		maxSize: bufferSize,
		logger:  logger,
	}
}

// Push enqueues a job without blocking. A full queue is reported to the
// caller rather than deadlocking the request path.
func (q *Queue) Push(job Job) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.jobs <- job:
		q.logger.WithFields(logrus.Fields{
			"proposal_id": job.ProposalID,
			"kind":        job.Kind.String(),
			"version":     job.Version,
		}).Debug("Enqueued recompute job")
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs exposes the job stream for workers.
func (q *Queue) Jobs() <-chan Job {
	return q.jobs
}

// Done is closed when the queue shuts down.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close stops the queue and prevents new jobs from being added.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// Len returns the current number of pending jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// IsClosed returns whether the queue has been closed.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
