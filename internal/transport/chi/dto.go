package chi

import (
	"fmt"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeDocumentNotFound     = "document_not_found"
	codeNotFound             = "not_found"
	codeVectorDimMismatch    = "vector_dim_mismatch"
	codeKeywordNotSupported  = "keyword_search_not_supported"
	codeRateLimited          = "rate_limited"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeStorageUnavailable   = "storage_unavailable"
	codeInternalError        = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DocumentRequest is one document to ingest.
type DocumentRequest struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Type   string `json:"type"`
	Text   string `json:"text"`
}

// BatchRequest is the body of POST /documents/batch.
type BatchRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// IngestResponse reports one stored document.
type IngestResponse struct {
	DocumentID string   `json:"document_id"`
	Type       string   `json:"type"`
	Assembler  string   `json:"assembler"`
	Chunks     int      `json:"chunks"`
	Oversized  int      `json:"oversized"`
	FellBack   bool     `json:"fell_back"`
	Warnings   []string `json:"warnings,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// BatchResultItem is the outcome of one batch item.
type BatchResultItem struct {
	Index  int            `json:"index"`
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status"`
	Chunks int            `json:"chunks,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /documents/batch.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// PreviewResponse is the body returned by POST /chunks/preview.
type PreviewResponse struct {
	Type      string         `json:"type"`
	Detected  bool           `json:"detected"`
	Assembler string         `json:"assembler"`
	FellBack  bool           `json:"fell_back"`
	Warnings  []string       `json:"warnings,omitempty"`
	Chunks    []chunk.Record `json:"chunks"`
}

// FilterRequest restricts retrieval by metadata; values within a field are OR-ed.
type FilterRequest struct {
	DocumentTypes  []string `json:"document_type,omitempty"`
	SemanticTypes  []string `json:"semantic_type,omitempty"`
	EvidenceLevels []string `json:"evidence_level,omitempty"`
	DocumentIDs    []string `json:"document_id,omitempty"`
}

// RetrieveRequest is the body of POST /retrieve. Unset options keep the configured defaults.
type RetrieveRequest struct {
	Query               string         `json:"query"`
	Filters             *FilterRequest `json:"filters,omitempty"`
	K                   *int           `json:"k,omitempty"`
	RerankCandidates    *int           `json:"rerank_candidates,omitempty"`
	SimilarityThreshold *float64       `json:"similarity_threshold,omitempty"`
	Mode                *string        `json:"mode,omitempty"`
	Hybrid              *bool          `json:"hybrid,omitempty"`
	VectorWeight        *float64       `json:"vector_weight,omitempty"`
	KeywordWeight       *float64       `json:"keyword_weight,omitempty"`
	Fusion              *string        `json:"fusion,omitempty"`
	Rerank              *bool          `json:"rerank,omitempty"`
	MMR                 *bool          `json:"mmr,omitempty"`
	Lambda              *float64       `json:"lambda,omitempty"`
	Expand              *bool          `json:"expand,omitempty"`
	ExpansionHops       *int           `json:"expansion_hops,omitempty"`
}

// RetrieveResponse is the body returned by POST /retrieve.
type RetrieveResponse struct {
	Items []result.Record `json:"items"`
	Total int             `json:"total"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Details map[string]string `json:"details,omitempty"`
	// LatencyMs is the check duration per component.
	LatencyMs map[string]int64 `json:"latency_ms,omitempty"`
}

func inputFromRequest(req DocumentRequest) (ingest.Input, error) {
	typ, err := document.ParseType(req.Type)
	if err != nil {
		return ingest.Input{}, err
	}
	return ingest.Input{ID: req.ID, Title: req.Title, Source: req.Source, Type: typ, Text: req.Text}, nil
}

func ingestToResponse(r ingest.Report) IngestResponse {
	return IngestResponse{
		DocumentID: r.DocumentID,
		Type:       string(r.Type),
		Assembler:  r.Assembler,
		Chunks:     r.Chunks,
		Oversized:  r.Oversized,
		FellBack:   r.FellBack,
		Warnings:   r.Warnings,
		DurationMs: r.Duration.Milliseconds(),
	}
}

func previewToResponse(r chunking.Result) PreviewResponse {
	return PreviewResponse{
		Type:      string(r.Type),
		Detected:  r.Detected,
		Assembler: r.Assembler,
		FellBack:  r.FellBack,
		Warnings:  r.Warnings,
		Chunks:    chunk.Records(r.Chunks),
	}
}

func batchResultToResponse(r dombatch.Result) BatchResultItem {
	item := BatchResultItem{
		Index:  r.Index(),
		ID:     r.ID(),
		Status: string(r.Status()),
		Chunks: r.Chunks(),
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{Code: errorCode(r.Err()), Message: safeDomainMessage(r.Err())}
	}
	return item
}

// requestFromRetrieve applies the caller's overrides to the configured defaults.
func requestFromRetrieve(req RetrieveRequest, defaults request.Options, maxK int) (request.Request, error) {
	if req.K != nil && (*req.K <= 0 || *req.K > maxK) {
		return request.Request{}, fmt.Errorf("k must be between 1 and %d", maxK)
	}

	var f filter.Filters
	if req.Filters != nil {
		var err error
		f, err = filter.New(req.Filters.DocumentTypes, req.Filters.SemanticTypes,
			req.Filters.EvidenceLevels, req.Filters.DocumentIDs)
		if err != nil {
			return request.Request{}, fmt.Errorf("parse filters: %w", err)
		}
	}

	ov := request.Overrides{
		K:                   req.K,
		RerankCandidates:    req.RerankCandidates,
		SimilarityThreshold: req.SimilarityThreshold,
		VectorWeight:        req.VectorWeight,
		KeywordWeight:       req.KeywordWeight,
		Rerank:              req.Rerank,
		MMR:                 req.MMR,
		Lambda:              req.Lambda,
		Expand:              req.Expand,
		ExpansionHops:       req.ExpansionHops,
	}
	if req.Mode != nil {
		m, err := mode.Parse(*req.Mode)
		if err != nil {
			return request.Request{}, err
		}
		ov.Mode = &m
	} else if req.Hybrid != nil && !*req.Hybrid {
		m := mode.Semantic
		ov.Mode = &m
	}
	if req.Fusion != nil {
		fu := request.Fusion(*req.Fusion)
		ov.Fusion = &fu
	}

	r, err := request.New(req.Query, f, defaults.Apply(ov))
	if err != nil {
		return request.Request{}, fmt.Errorf("build retrieval request: %w", err)
	}
	return r, nil
}
