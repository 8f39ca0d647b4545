package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/travelog/internal/apperrors"
)

// Job is a unit of periodic maintenance.
type Job struct {
	Type     string
	Interval time.Duration
	Timeout  time.Duration // Per run; 0 means Interval
	Run      func(ctx context.Context) error
}

// Runner executes jobs on their intervals until its context is cancelled.
type Runner struct {
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner creates a Runner. Both arguments may be nil.
func NewRunner(metrics *Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{metrics: metrics, logger: logger, now: time.Now}
}

// Start launches every job in its own goroutine. The returned function
// cancels them and waits until all have stopped.
func (r *Runner) Start(ctx context.Context, jobs ...Job) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{}, len(jobs))
	for _, job := range jobs {
		go func(job Job) {
			defer func() { done <- struct{}{} }()
			r.RunPeriodic(ctx, job)
		}(job)
	}
	return func() {
		cancel()
		for range jobs {
			<-done
		}
	}
}

// RunPeriodic runs job immediately and then on every tick. It blocks until
// ctx is done.
func (r *Runner) RunPeriodic(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.RunOnce(ctx, job)
	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx, job)
		case <-ctx.Done():
			r.logger.Debug("stopping background job", "job_type", job.Type)
			return
		}
	}
}

// RunOnce executes a single run of job and records it.
func (r *Runner) RunOnce(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := job.Run(runCtx)
	seconds := r.now().Sub(start).Seconds()

	if err != nil {
		r.metrics.observe(job.Type, seconds, errorType(err))
		r.logger.ErrorContext(ctx, "background job failed", "job_type", job.Type, "error", err)
		return err
	}
	r.metrics.observe(job.Type, seconds, "")
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return apperrors.Code(err)
	}
}
