// Package mcp exposes retrieval and chunk preview as Model Context Protocol tools
// so a note-drafting assistant can call them directly.
package mcp

import (
	"context"
	"errors"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")

// Retriever is satisfied by retrieve.Service.
type Retriever interface {
	Retrieve(ctx context.Context, req request.Request) ([]result.Hit, error)
}

// Previewer is satisfied by ingest.Service. Optional.
type Previewer interface {
	Preview(ctx context.Context, in ingest.Input) (chunking.Result, error)
}
