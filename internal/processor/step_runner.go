package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"propure/server/config"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// StepRunner runs idempotent units of work with bounded retries and
// exponential backoff.
type StepRunner struct {
	logger     *logrus.Logger
	maxRetries int
	retryDelay time.Duration
}

func NewStepRunner(cfg *config.Config, logger *logrus.Logger) *StepRunner {
	return NewStepRunnerWith(cfg.Steps.MaxRetries, cfg.RetryDelay(), logger)
}

func NewStepRunnerWith(maxRetries int, retryDelay time.Duration, logger *logrus.Logger) *StepRunner {
	if logger == nil {
		logger = logrus.New()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &StepRunner{logger: logger, maxRetries: maxRetries, retryDelay: retryDelay}
}

func (r *StepRunner) backoff(attempt int) time.Duration {
	return r.retryDelay * time.Duration(1<<uint(attempt-1))
}

// Run calls fn until it succeeds, returns a permanent error, ctx is done or
// the retries are used up. The last error is returned wrapped.
func (r *StepRunner) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.WithFields(logrus.Fields{
				"step":    name,
				"attempt": attempt,
				"delay":   delay.String(),
			}).Infof("Retrying step, attempt %d of %d", attempt, r.maxRetries)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("step %s cancelled: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		r.logger.WithError(err).WithFields(logrus.Fields{
			"step":    name,
			"attempt": attempt,
		}).Warn("Step failed")

		if IsPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("step %s cancelled: %w: %w", name, ctx.Err(), err)
		}
	}

	return fmt.Errorf("step %s failed after %d attempts: %w", name, r.maxRetries+1, err)
}

// Do is Run for steps that produce a value.
func Do[T any](ctx context.Context, r *StepRunner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Run(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
