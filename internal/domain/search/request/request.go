package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
)

// Retrieval parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length.
	MaxQueryLength      = 4096
	DefaultK            = 5
	MaxK                = 100
	MaxRerankCandidates = 200
	MaxExpansionHops    = 3
)

// Fusion selects how vector and keyword scores are combined.
type Fusion string

// Fusion constants.
const (
	// Weighted is vectorWeight*minmax(vector) + keywordWeight*minmax(keyword).
	Weighted Fusion = "weighted"
	// RRF is reciprocal rank fusion.
	RRF Fusion = "rrf"
)

// Options tunes one retrieval. Zero values are filled by New.
type Options struct {
	K                   int
	RerankCandidates    int
	SimilarityThreshold float64
	Mode                mode.Mode
	VectorWeight        float64
	KeywordWeight       float64
	Fusion              Fusion
	Rerank              bool
	MMR                 bool
	Lambda              float64
	Expand              bool
	ExpansionHops       int
}

// Overrides carries caller supplied values; nil fields keep the configured default.
type Overrides struct {
	K                   *int
	RerankCandidates    *int
	SimilarityThreshold *float64
	Mode                *mode.Mode
	VectorWeight        *float64
	KeywordWeight       *float64
	Fusion              *Fusion
	Rerank              *bool
	MMR                 *bool
	Lambda              *float64
	Expand              *bool
	ExpansionHops       *int
}

// Apply returns o with every non-nil override applied.
func (o Options) Apply(ov Overrides) Options {
	if ov.K != nil {
		o.K = *ov.K
	}
	if ov.RerankCandidates != nil {
		o.RerankCandidates = *ov.RerankCandidates
	}
	if ov.SimilarityThreshold != nil {
		o.SimilarityThreshold = *ov.SimilarityThreshold
	}
	if ov.Mode != nil {
		o.Mode = *ov.Mode
	}
	if ov.VectorWeight != nil {
		o.VectorWeight = *ov.VectorWeight
	}
	if ov.KeywordWeight != nil {
		o.KeywordWeight = *ov.KeywordWeight
	}
	if ov.Fusion != nil {
		o.Fusion = *ov.Fusion
	}
	if ov.Rerank != nil {
		o.Rerank = *ov.Rerank
	}
	if ov.MMR != nil {
		o.MMR = *ov.MMR
	}
	if ov.Lambda != nil {
		o.Lambda = *ov.Lambda
	}
	if ov.Expand != nil {
		o.Expand = *ov.Expand
	}
	if ov.ExpansionHops != nil {
		o.ExpansionHops = *ov.ExpansionHops
	}
	return o
}

// Request is a validated retrieval query.
type Request struct {
	query   string
	filters filter.Filters
	opts    Options
}

// New validates and normalizes retrieval parameters.
// Defaults: mode=hybrid, k=5, fusion=weighted 0.7/0.3, lambda=0.5, hops=1.
// RerankCandidates is raised to k so reranking never shrinks the candidate pool below k.
func New(query string, filters filter.Filters, opts Options) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}

	if opts.Mode == "" {
		opts.Mode = mode.Hybrid
	}
	if !opts.Mode.IsValid() {
		return Request{}, fmt.Errorf("invalid retrieval mode: %q", opts.Mode)
	}
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.K > MaxK {
		opts.K = MaxK
	}
	if opts.RerankCandidates < opts.K {
		opts.RerankCandidates = opts.K
	}
	if opts.RerankCandidates > MaxRerankCandidates {
		opts.RerankCandidates = MaxRerankCandidates
	}
	if opts.SimilarityThreshold < -1 || opts.SimilarityThreshold > 1 {
		return Request{}, fmt.Errorf("similarity_threshold must be between -1 and 1")
	}
	if opts.VectorWeight < 0 || opts.KeywordWeight < 0 {
		return Request{}, fmt.Errorf("fusion weights must be non-negative")
	}
	if opts.VectorWeight == 0 && opts.KeywordWeight == 0 {
		opts.VectorWeight, opts.KeywordWeight = 0.7, 0.3
	}
	if opts.Fusion == "" {
		opts.Fusion = Weighted
	}
	if opts.Fusion != Weighted && opts.Fusion != RRF {
		return Request{}, fmt.Errorf("invalid fusion: %q", opts.Fusion)
	}
	if opts.Lambda < 0 || opts.Lambda > 1 {
		return Request{}, fmt.Errorf("lambda must be between 0 and 1")
	}
	if opts.Lambda == 0 {
		opts.Lambda = 0.5
	}
	if opts.ExpansionHops <= 0 {
		opts.ExpansionHops = 1
	}
	if opts.ExpansionHops > MaxExpansionHops {
		opts.ExpansionHops = MaxExpansionHops
	}

	return Request{query: query, filters: filters, opts: opts}, nil
}

// Query returns the query text.
func (r Request) Query() string { return r.query }

// Filters returns the metadata filters.
func (r Request) Filters() filter.Filters { return r.filters }

// Options returns the normalized options.
func (r Request) Options() Options { return r.opts }

// K returns the number of results to return.
func (r Request) K() int { return r.opts.K }

// VectorCandidates returns how many vector hits to fetch: rerankCandidates when
// reranking, k otherwise.
func (r Request) VectorCandidates() int {
	if r.opts.Rerank {
		return r.opts.RerankCandidates
	}
	return r.opts.K
}

// KeywordCandidates returns how many keyword hits to fetch (2k).
func (r Request) KeywordCandidates() int {
	n := 2 * r.opts.K
	if r.opts.Mode == mode.Keyword && r.opts.Rerank && r.opts.RerankCandidates > n {
		n = r.opts.RerankCandidates
	}
	return n
}
