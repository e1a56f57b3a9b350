package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"propure/server/internal/models"
)

// JobType represents the kinds of scheduled runs
type JobType int

const (
	JobTypeListingSync JobType = iota
	JobTypeSuburbMetrics
	JobTypeDemographicsSync
)

func (j JobType) String() string {
	switch j {
	case JobTypeListingSync:
		return "listing-sync"
	case JobTypeSuburbMetrics:
		return "suburb-metrics"
	case JobTypeDemographicsSync:
		return "demographics-sync"
	default:
		return "unknown"
	}
}

var (
	ErrNoLocations          = errors.New("no locations to process")
	ErrDemographicsDisabled = errors.New("demographics sync is not configured")
)

type SyncRunner interface {
	Run(ctx context.Context) (*models.SyncRunResult, error)
}

type MetricsRunner interface {
	Run(ctx context.Context, locations []models.ScrapeLocation) *models.SuburbRunResult
}

type DemographicsRunner interface {
	Run(ctx context.Context) (*models.DemographicsRunResult, error)
}

type LocationLister interface {
	ListLocations(ctx context.Context) ([]models.ScrapeLocation, error)
}

// LocationPusher receives the locations a sync run completed.
type LocationPusher interface {
	Push(batch []models.ScrapeLocation) error
}

type Notifier interface {
	NotifySuburbRun(ctx context.Context, result *models.SuburbRunResult) error
	NotifySyncRun(ctx context.Context, result *models.SyncRunResult) error
}

type Deps struct {
	Sync      SyncRunner
	Metrics   MetricsRunner
	Locations LocationLister
	// Demographics, Queue and Notifier are optional.
	Demographics DemographicsRunner
	Queue        LocationPusher
	Notifier     Notifier
}

type Options struct {
	SyncCron         string
	MetricsCron      string
	DemographicsCron string
	RunOnStartup     bool
}

// Scheduler runs listing syncs and full metrics runs on cron schedules. All
// runs, scheduled or triggered, execute one at a time.
type Scheduler struct {
	deps     Deps
	opts     Options
	cron     *cron.Cron
	logger   *logrus.Logger
	jobMutex sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(deps Deps, opts Options, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		deps:   deps,
		opts:   opts,
		logger: logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the configured jobs and starts the cron loop. An empty
// cron expression disables that job.
func (s *Scheduler) Start() error {
	if s.opts.SyncCron != "" {
		if _, err := s.cron.AddFunc(s.opts.SyncCron, func() { s.runScheduled(JobTypeListingSync) }); err != nil {
			return fmt.Errorf("invalid sync cron expression: %w", err)
		}
	}
	if s.opts.MetricsCron != "" {
		if _, err := s.cron.AddFunc(s.opts.MetricsCron, func() { s.runScheduled(JobTypeSuburbMetrics) }); err != nil {
			return fmt.Errorf("invalid metrics cron expression: %w", err)
		}
	}
	if s.opts.DemographicsCron != "" && s.deps.Demographics != nil {
		if _, err := s.cron.AddFunc(s.opts.DemographicsCron, func() { s.runScheduled(JobTypeDemographicsSync) }); err != nil {
			return fmt.Errorf("invalid demographics cron expression: %w", err)
		}
	}
	s.cron.Start()

	s.logger.WithFields(logrus.Fields{
		"sync_cron":         s.opts.SyncCron,
		"metrics_cron":      s.opts.MetricsCron,
		"demographics_cron": s.opts.DemographicsCron,
	}).Info("Scheduler started")

	if s.opts.RunOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("Running startup jobs")
			if s.deps.Demographics != nil {
				s.runScheduled(JobTypeDemographicsSync)
			}
			s.runScheduled(JobTypeListingSync)
			s.runScheduled(JobTypeSuburbMetrics)
			s.logger.Info("Startup jobs completed")
		}()
	}
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) runScheduled(job JobType) {
	if s.ctx.Err() != nil {
		return
	}
	var err error
	switch job {
	case JobTypeListingSync:
		_, err = s.RunListingSync(s.ctx)
	case JobTypeSuburbMetrics:
		_, err = s.RunSuburbMetrics(s.ctx, nil)
	case JobTypeDemographicsSync:
		_, err = s.RunDemographicsSync(s.ctx)
	}
	if err != nil {
		s.logger.WithError(err).WithField("job_type", job.String()).Error("Scheduled job failed")
	}
}

// RunListingSync syncs all locations, then queues the completed ones for a
// metrics recompute.
func (s *Scheduler) RunListingSync(ctx context.Context) (*models.SyncRunResult, error) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	logger := s.logger.WithField("job_type", JobTypeListingSync.String())
	logger.Info("Starting job")

	result, err := s.deps.Sync.Run(ctx)
	if err != nil {
		return nil, err
	}
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}
	logger = logger.WithField("run_id", result.RunID)

	if completed := result.CompletedLocations(); len(completed) > 0 && s.deps.Queue != nil {
		if err := s.deps.Queue.Push(completed); err != nil {
			logger.WithError(err).Error("Failed to queue synced locations")
		} else {
			logger.WithField("locations", len(completed)).Info("Queued synced locations for metrics")
		}
	}

	s.notify(ctx, logger, func(ctx context.Context, n Notifier) error { return n.NotifySyncRun(ctx, result) })
	logger.WithFields(logrus.Fields{
		"completed": result.Completed,
		"pending":   result.Pending,
	}).Info("Job completed")
	return result, nil
}

// RunSuburbMetrics recomputes metrics for locations, or for every stored
// location when locations is empty.
func (s *Scheduler) RunSuburbMetrics(ctx context.Context, locations []models.ScrapeLocation) (*models.SuburbRunResult, error) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	logger := s.logger.WithField("job_type", JobTypeSuburbMetrics.String())
	if len(locations) == 0 {
		stored, err := s.deps.Locations.ListLocations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load locations: %w", err)
		}
		locations = stored
	}
	if len(locations) == 0 {
		return nil, ErrNoLocations
	}

	logger.WithField("suburbs", len(locations)).Info("Starting job")
	result := s.deps.Metrics.Run(ctx, locations)
	logger = logger.WithField("run_id", result.RunID)

	s.notify(ctx, logger, func(ctx context.Context, n Notifier) error { return n.NotifySuburbRun(ctx, result) })
	logger.WithFields(logrus.Fields{
		"updated": result.SuccessCount,
		"failed":  result.FailureCount,
	}).Info("Job completed")
	return result, nil
}

// RunDemographicsSync refreshes the census snapshots of every location.
func (s *Scheduler) RunDemographicsSync(ctx context.Context) (*models.DemographicsRunResult, error) {
	if s.deps.Demographics == nil {
		return nil, ErrDemographicsDisabled
	}
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	logger := s.logger.WithField("job_type", JobTypeDemographicsSync.String())
	logger.Info("Starting job")

	result, err := s.deps.Demographics.Run(ctx)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Job completed")
	return result, nil
}

func (s *Scheduler) notify(ctx context.Context, logger *logrus.Entry, send func(context.Context, Notifier) error) {
	if s.deps.Notifier == nil {
		return
	}
	if err := send(ctx, s.deps.Notifier); err != nil {
		logger.WithError(err).Warn("Failed to send run notification")
	}
}
