package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/travelog/internal/health"
)

// mockHealthChecker is a mock implementation of health.Checker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.err
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{MetricsEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handlers.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}
	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

func TestReady_AllHealthy(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		Checks: []health.Check{
			{Name: "storage", Checker: &mockHealthChecker{}, Critical: true},
			{Name: "redis", Checker: &mockHealthChecker{}},
		},
		MetricsEnabled: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	for _, name := range []string{"storage", "redis", "metrics"} {
		if response.Checks[name] != "ok" {
			t.Errorf("expected %s check to be 'ok', got %q", name, response.Checks[name])
		}
	}
}

func TestReady_CriticalFailure(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		Checks: []health.Check{
			{Name: "storage", Checker: &mockHealthChecker{err: errors.New("disk gone")}, Critical: true},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %s", response.Status)
	}
	if response.Checks["storage"] != "error" {
		t.Errorf("expected storage check to be 'error', got %q", response.Checks["storage"])
	}
	if _, ok := response.Checks["metrics"]; ok {
		t.Error("metrics check should be absent when metrics are disabled")
	}
}

func TestReady_OptionalFailureStaysReady(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		Checks: []health.Check{
			{Name: "storage", Checker: &mockHealthChecker{}, Critical: true},
			{Name: "redis", Checker: &mockHealthChecker{err: errors.New("connection refused")}},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Checks["redis"] != "error" {
		t.Errorf("expected redis check to be 'error', got %q", response.Checks["redis"])
	}
}

func TestReady_RespectsTimeout(t *testing.T) {
	slow := checkerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	handlers := NewHealthHandlers(HealthHandlersConfig{
		Checks:  []health.Check{{Name: "storage", Checker: slow, Critical: true}},
		Timeout: 20 * time.Millisecond,
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
