// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"sort"
	"sync"
)

// Checker is anything that can report its own health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Check is a named dependency probe. Non-critical failures are reported but
// do not make the service unready.
type Check struct {
	Name     string
	Checker  Checker
	Critical bool
}

// Result is the outcome of one Check.
type Result struct {
	Name     string
	Err      error
	Critical bool
}

// Report aggregates the results of Run.
type Report struct {
	Ready   bool
	Results []Result
}

// Statuses renders the report as name to "ok" or "error".
func (r Report) Statuses() map[string]string {
	out := make(map[string]string, len(r.Results))
	for _, res := range r.Results {
		if res.Err != nil {
			out[res.Name] = "error"
		} else {
			out[res.Name] = "ok"
		}
	}
	return out
}

// Run executes every check concurrently and waits for all of them. Results
// are sorted by name.
func Run(ctx context.Context, checks []Check) Report {
	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			results[i] = Result{Name: c.Name, Critical: c.Critical, Err: c.Checker.HealthCheck(ctx)}
		}(i, c)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })
	report := Report{Ready: true, Results: results}
	for _, res := range results {
		if res.Err != nil && res.Critical {
			report.Ready = false
		}
	}
	return report
}

// Pinger is implemented by collection.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageChecker probes the durable medium behind the collection store.
type StorageChecker struct {
	pinger Pinger
}

// NewStorageChecker creates a storage health checker.
func NewStorageChecker(p Pinger) *StorageChecker {
	return &StorageChecker{pinger: p}
}

// HealthCheck pings the storage backend.
func (s *StorageChecker) HealthCheck(ctx context.Context) error {
	return s.pinger.Ping(ctx)
}
