package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/travelog/internal/apperrors"
)

func newTestRunner(m *Metrics) *Runner {
	return NewRunner(m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunOnce_RecordsOutcome(t *testing.T) {
	m := NewMetrics()
	r := newTestRunner(m)

	ok := Job{Type: JobTypeAuditVerify, Interval: time.Second, Run: func(context.Context) error { return nil }}
	if err := r.RunOnce(context.Background(), ok); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	failing := Job{Type: JobTypeAuditVerify, Interval: time.Second, Run: func(context.Context) error {
		return fmt.Errorf("%w: bucket gone", apperrors.ErrStorageUnavailable)
	}}
	if err := r.RunOnce(context.Background(), failing); err == nil {
		t.Fatal("expected the job error to be returned")
	}

	if got := getCounterVecValue(m.jobsTotal, JobTypeAuditVerify, StatusSuccess); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := getCounterVecValue(m.jobErrors, JobTypeAuditVerify, "storage_unavailable"); got != 1 {
		t.Errorf("storage_unavailable errors = %v, want 1", got)
	}
}

func TestRunOnce_AppliesTimeout(t *testing.T) {
	m := NewMetrics()
	r := newTestRunner(m)

	job := Job{
		Type:     JobTypeRateLimitCleanup,
		Interval: time.Hour,
		Timeout:  10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	err := r.RunOnce(context.Background(), job)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if got := getCounterVecValue(m.jobErrors, JobTypeRateLimitCleanup, "timeout"); got != 1 {
		t.Errorf("timeout errors = %v, want 1", got)
	}
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	r := newTestRunner(nil)

	var runs atomic.Int32
	first := make(chan struct{})
	job := Job{
		Type:     JobTypeRateLimitCleanup,
		Interval: time.Hour,
		Run: func(context.Context) error {
			if runs.Add(1) == 1 {
				close(first)
			}
			return nil
		},
	}

	stop := r.Start(context.Background(), job)
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	stop()

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 before the first tick", got)
	}
}

func TestStart_TicksUntilCancelled(t *testing.T) {
	r := newTestRunner(nil)

	var runs atomic.Int32
	job := Job{
		Type:     JobTypeRateLimitCleanup,
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := r.Start(ctx, job)
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	stop()

	if got := runs.Load(); got < 3 {
		t.Errorf("runs = %d, want at least 3", got)
	}
}
