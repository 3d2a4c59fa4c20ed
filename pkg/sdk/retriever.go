package clinrag

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
)

// RetrieverService runs retrieval queries.
type RetrieverService struct {
	svc      retrieveUseCase
	defaults request.Options
	obs      *observer
}

// Retrieve returns up to opts.K chunks for query, best first. A retrieval that runs
// out of time returns an empty slice and no error.
func (s *RetrieverService) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (_ []Hit, err error) {
	start := time.Now()
	chunks := -1
	defer func() { s.obs.observe("retrieve", start, chunks, err) }()

	req, err := s.request(query, opts)
	if err != nil {
		return nil, err
	}
	hits, err := s.svc.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{Chunk: fromChunk(h.Chunk()), Score: h.Score()}
	}
	chunks = len(out)
	return out, nil
}

func (s *RetrieverService) request(query string, opts RetrieveOptions) (request.Request, error) {
	docTypes := make([]string, len(opts.DocumentTypes))
	for i, t := range opts.DocumentTypes {
		docTypes[i] = string(t)
	}
	f, err := filter.New(docTypes, opts.SemanticTypes, opts.EvidenceLevels, opts.DocumentIDs)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	o := s.defaults
	if opts.K > 0 {
		o.K = opts.K
	}
	if opts.Mode != "" {
		m, err := mode.Parse(string(opts.Mode))
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		o.Mode = m
	}
	if opts.SimilarityThreshold != 0 {
		o.SimilarityThreshold = opts.SimilarityThreshold
	}
	if opts.DisableRerank {
		o.Rerank = false
	}
	if opts.DisableMMR {
		o.MMR = false
	}
	if opts.Expand {
		o.Expand = true
	}
	if opts.ExpansionHops > 0 {
		o.ExpansionHops = opts.ExpansionHops
	}

	req, err := request.New(query, f, o)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return req, nil
}
