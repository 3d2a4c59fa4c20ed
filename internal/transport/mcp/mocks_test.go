package mcp

import (
	"context"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

type mockRetriever struct {
	hits []result.Hit
	err  error
	last request.Request
}

func (m *mockRetriever) Retrieve(_ context.Context, req request.Request) ([]result.Hit, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

type mockPreviewer struct {
	res  chunking.Result
	err  error
	last ingest.Input
}

func (m *mockPreviewer) Preview(_ context.Context, in ingest.Input) (chunking.Result, error) {
	m.last = in
	if m.err != nil {
		return chunking.Result{}, m.err
	}
	return m.res, nil
}
