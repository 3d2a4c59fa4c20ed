package health

import "context"

// DBPinger is the graph store.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker is any provider with a liveness check: the embedder, a remote
// cross-encoder.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// RerankChecker is the cross-encoder check.
type RerankChecker = Checker
