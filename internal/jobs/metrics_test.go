package jobs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterVecValue(vec *prometheus.CounterVec, labels ...string) float64 {
	metric, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return -1
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func getHistogramVecSampleCount(vec *prometheus.HistogramVec, labels ...string) uint64 {
	observer, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		return 0
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if len(m.Collectors()) != 3 {
		t.Errorf("expected 3 collectors, got %d", len(m.Collectors()))
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		m.observe(JobTypeAuditVerify, 0.5, "")
		m.observe(JobTypeAuditVerify, 0.5, "internal_error")

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}
		expected := map[string]bool{
			MetricBackgroundJobsTotal:      false,
			MetricBackgroundJobsDuration:   false,
			MetricBackgroundJobErrorsTotal: false,
		}
		for _, family := range families {
			if _, ok := expected[family.GetName()]; ok {
				expected[family.GetName()] = true
			}
		}
		for name, found := range expected {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()
	m.observe(JobTypeRateLimitCleanup, 0.01, "")
	m.observe(JobTypeRateLimitCleanup, 0.01, "")
	m.observe(JobTypeRateLimitCleanup, 0.02, "timeout")

	if got := getCounterVecValue(m.jobsTotal, JobTypeRateLimitCleanup, StatusSuccess); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := getCounterVecValue(m.jobsTotal, JobTypeRateLimitCleanup, StatusFailure); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
	if got := getCounterVecValue(m.jobErrors, JobTypeRateLimitCleanup, "timeout"); got != 1 {
		t.Errorf("timeout errors = %v, want 1", got)
	}
	if got := getHistogramVecSampleCount(m.jobsDuration, JobTypeRateLimitCleanup); got != 3 {
		t.Errorf("duration samples = %d, want 3", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.observe(JobTypeAuditVerify, 1, "internal_error")
}
