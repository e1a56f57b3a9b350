package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"propure/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler processes one batch of locations.
type Handler func(batch []models.ScrapeLocation) error

// LocationQueue is an in-memory queue of location batches waiting for a
// metrics recompute.
type LocationQueue struct {
	items    chan []models.ScrapeLocation
	done     chan struct{}
	stopped  chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []Handler
}

// NewLocationQueue creates a queue holding at most bufferSize pending batches.
func NewLocationQueue(bufferSize int, logger *logrus.Logger) *LocationQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &LocationQueue{
		items:   make(chan []models.ScrapeLocation, bufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		maxSize: bufferSize,
		logger:  logger,
	}
}

// Push adds a batch without blocking. Empty batches are ignored.
func (q *LocationQueue) Push(batch []models.ScrapeLocation) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if len(batch) == 0 {
		return nil
	}

	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed locations to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler called for every batch.
func (q *LocationQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins delivering batches to the subscribers. Calling it twice is a no-op.
func (q *LocationQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.process()
}

func (q *LocationQueue) process() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

func (q *LocationQueue) processBatch(batch []models.ScrapeLocation) {
	q.mu.RLock()
	handlers := make([]Handler, len(q.handlers))
	copy(handlers, q.handlers)
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).WithField("batch_size", len(batch)).Error("Handler failed to process batch")
		}
	}
}

// Close stops delivery and rejects further pushes. Batches still buffered are
// dropped. It waits for the batch in flight, if any.
func (q *LocationQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.done)
	q.mu.Unlock()

	if started {
		<-q.stopped
	}
	if dropped := len(q.items); dropped > 0 {
		q.logger.WithField("dropped_batches", dropped).Warn("Closed queue with pending batches")
	}
	return nil
}

// Len returns the number of pending batches.
func (q *LocationQueue) Len() int {
	return len(q.items)
}

func (q *LocationQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
