package processor

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"propure/server/internal/models"
	"propure/server/internal/queue"
)

// MetricsWorkflow recomputes the metrics of a set of locations.
type MetricsWorkflow interface {
	Run(ctx context.Context, locations []models.ScrapeLocation) *models.SuburbRunResult
}

type RunNotifier interface {
	NotifySuburbRun(ctx context.Context, result *models.SuburbRunResult) error
}

// BatchProcessor consumes location batches from the queue and recomputes
// their suburb metrics. Batches run one at a time.
type BatchProcessor struct {
	queue     *queue.LocationQueue
	workflow  MetricsWorkflow
	notifier  RunNotifier
	logger    *logrus.Logger
	mu        sync.Mutex
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   bool
}

// NewBatchProcessor wires a processor to q. notifier may be nil.
func NewBatchProcessor(q *queue.LocationQueue, workflow MetricsWorkflow, notifier RunNotifier, logger *logrus.Logger) *BatchProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &BatchProcessor{
		queue:    q,
		workflow: workflow,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	q.Subscribe(p.processBatch)
	return p
}

// Start begins consuming the queue.
func (p *BatchProcessor) Start() {
	p.queue.Start()
}

// Stop cancels the batch in flight and waits for it to return.
func (p *BatchProcessor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.waitGroup.Wait()
}

func (p *BatchProcessor) processBatch(batch []models.ScrapeLocation) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return errors.New("processor stopped")
	}
	p.waitGroup.Add(1)
	p.mu.Unlock()
	defer p.waitGroup.Done()

	p.logger.WithField("batch_size", len(batch)).Info("Recomputing metrics for synced locations")

	result := p.workflow.Run(p.ctx, batch)

	p.logger.WithFields(logrus.Fields{
		"run_id":     result.RunID,
		"updated":    result.SuccessCount,
		"failed":     result.FailureCount,
		"batch_size": len(batch),
	}).Info("Finished metrics batch")

	if p.notifier != nil {
		if err := p.notifier.NotifySuburbRun(p.ctx, result); err != nil {
			p.logger.WithError(err).Warn("Failed to send metrics run notification")
		}
	}

	if !result.Success {
		if result.Error != "" {
			return errors.New(result.Error)
		}
		return errors.New("one or more suburbs failed")
	}
	return nil
}
