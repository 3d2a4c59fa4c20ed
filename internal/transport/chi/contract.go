package chi

import (
	"context"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// Ingester is the write side; satisfied by ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (ingest.Report, error)
	IngestBatch(ctx context.Context, items []ingest.Input) []dombatch.Result
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, in ingest.Input) (chunking.Result, error)
}

// Retriever is the query side; satisfied by retrieve.Service.
type Retriever interface {
	Retrieve(ctx context.Context, req request.Request) ([]result.Hit, error)
}

// HealthChecker reports component health; satisfied by health.Service.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
