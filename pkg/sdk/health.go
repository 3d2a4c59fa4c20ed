package clinrag

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
)

// HealthStatus is the outcome of probing the graph store and the model providers.
type HealthStatus struct {
	// Status is "ok" or "degraded".
	Status string
	// Checks maps a component (database, embedding, rerank) to "ok" or "error".
	Checks map[string]string
	// Errors holds the failure text of each failing component.
	Errors  map[string]string
	Latency map[string]time.Duration
}

// OK reports whether every component passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health checks every component concurrently.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	h := HealthStatus{
		Status:  string(report.Status),
		Checks:  make(map[string]string, len(report.Checks)),
		Errors:  report.Details,
		Latency: report.Latency,
	}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}
	c.obs.observe("health", start, -1, nil)
	return h
}
