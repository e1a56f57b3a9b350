package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a workflow run triggered through the API.
type Job struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Status     JobStatus   `json:"status"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

type JobFunc func(ctx context.Context) (interface{}, error)

// JobRegistry runs jobs in the background and keeps their state in memory.
type JobRegistry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger
}

func NewJobRegistry(logger *logrus.Logger) *JobRegistry {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobRegistry{
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Start registers a job and runs fn in its own goroutine. The returned copy
// reflects the job as queued.
func (r *JobRegistry) Start(jobType string, fn JobFunc) Job {
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    JobQueued,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	snapshot := *job
	r.mu.Unlock()

	logger := r.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": jobType,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.update(job.ID, func(j *Job) {
			now := time.Now().UTC()
			j.Status = JobRunning
			j.StartedAt = &now
		})
		logger.Info("Job started")

		result, err := safeRun(r.ctx, fn)

		r.update(job.ID, func(j *Job) {
			now := time.Now().UTC()
			j.FinishedAt = &now
			j.Result = result
			if err != nil {
				j.Status = JobFailed
				j.Error = err.Error()
			} else {
				j.Status = JobSucceeded
			}
		})
		if err != nil {
			logger.WithError(err).Error("Job failed")
		} else {
			logger.Info("Job finished")
		}
	}()

	return snapshot
}

func safeRun(ctx context.Context, fn JobFunc) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func (r *JobRegistry) update(id string, mutate func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		mutate(j)
	}
}

// Get returns a copy of the job.
func (r *JobRegistry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Wait blocks until every started job has returned.
func (r *JobRegistry) Wait() {
	r.wg.Wait()
}

// Shutdown cancels running jobs and waits for them.
func (r *JobRegistry) Shutdown() {
	r.cancel()
	r.wg.Wait()
}
