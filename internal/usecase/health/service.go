// Package health checks the graph store and the model providers. The core is
// either ok or degraded; there is no partial-ready state.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status is the aggregate verdict.
type Status string

// Aggregate statuses.
const (
	Healthy  Status = "ok"
	Degraded Status = "degraded"
)

// CheckResult is the verdict for one component.
type CheckResult string

// Component results.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 3 * time.Second

// Report holds per-component results. Details carries the error text of
// failing components only.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Details map[string]string
	Latency map[string]time.Duration
}

// Failing lists the failing components, sorted.
func (r Report) Failing() []string {
	var out []string
	for name, res := range r.Checks {
		if res == CheckError {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

type component struct {
	name  string
	check func(context.Context) error
}

// Service checks all components concurrently, each under its own timeout.
type Service struct {
	components []component
	timeout    time.Duration
}

// New checks the store as "database" and, when non-nil, the embedder as "embedding".
func New(db DBPinger, embedding Checker) *Service {
	s := &Service{timeout: defaultCheckTimeout}
	s.components = append(s.components, component{name: "database", check: db.Ping})
	if embedding != nil {
		s.components = append(s.components, component{name: "embedding", check: embedding.HealthCheck})
	}
	return s
}

// WithRerank adds the cross-encoder check as "rerank".
func (s *Service) WithRerank(r Checker) *Service {
	if r != nil {
		s.components = append(s.components, component{name: "rerank", check: r.HealthCheck})
	}
	return s
}

// WithTimeout bounds each component check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every component check and aggregates the results.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{
		Status:  Healthy,
		Checks:  make(map[string]CheckResult, len(s.components)),
		Details: make(map[string]string),
		Latency: make(map[string]time.Duration, len(s.components)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := s.run(ctx, p)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			r.Latency[p.name] = elapsed
			if err != nil {
				r.Checks[p.name] = CheckError
				r.Details[p.name] = err.Error()
				r.Status = Degraded
				return
			}
			r.Checks[p.name] = CheckOK
		}()
	}
	wg.Wait()
	return r
}

func (s *Service) run(ctx context.Context, p component) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return p.check(ctx)
}
