// Package chi serves the HTTP API.
package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/logger"
	"github.com/kailas-cloud/clinrag/internal/metrics"
	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

const defaultMaxBodyBytes = 8 << 20

// Server handles the clinrag HTTP API.
type Server struct {
	ingest        Ingester
	retrieve      Retriever
	health        HealthChecker
	defaults      request.Options
	maxK          int
	maxBatchSize  int
	maxBodyBytes  int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaults are the configured retrieval options.
func NewServer(ing Ingester, ret Retriever, health HealthChecker, defaults request.Options, logger *zap.Logger) *Server {
	return &Server{
		ingest:        ing,
		retrieve:      ret,
		health:        health,
		defaults:      defaults,
		maxK:          request.MaxK,
		maxBatchSize:  ingest.MaxBatchSize,
		maxBodyBytes:  defaultMaxBodyBytes,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithMaxK caps k accepted from callers.
func (s *Server) WithMaxK(n int) *Server {
	if n > 0 {
		s.maxK = n
	}
	return s
}

// WithMaxBatchSize caps the number of documents per batch request.
func (s *Server) WithMaxBatchSize(n int) *Server {
	if n > 0 {
		s.maxBatchSize = n
	}
	return s
}

// WithMaxBodyBytes caps request bodies.
func (s *Server) WithMaxBodyBytes(n int) *Server {
	if n > 0 {
		s.maxBodyBytes = int64(n)
	}
	return s
}

// Router builds the chi router with the middleware stack and every route.
func (s *Server) Router() http.Handler {
	r := chirouter.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chimw.RequestID)
	r.Use(WideEvent(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/documents", s.IngestDocument)
		r.Post("/documents/batch", s.IngestBatch)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Post("/chunks/preview", s.PreviewChunks)
		r.Post("/retrieve", s.Retrieve)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// IngestDocument handles POST /api/v1/documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	in, err := inputFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.ingest.Ingest(ctx, in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+report.DocumentID)
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, ingestToResponse(report))
}

// IngestBatch handles POST /api/v1/documents/batch.
func (s *Server) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > s.maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", s.maxBatchSize))
		return
	}

	items := make([]ingest.Input, len(req.Documents))
	for i, d := range req.Documents {
		in, err := inputFromRequest(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, fmt.Sprintf("documents[%d]: %s", i, err))
			return
		}
		items[i] = in
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results := s.ingest.IngestBatch(ctx, items)

	resp := BatchResponse{Items: make([]BatchResultItem, len(results))}
	for i, res := range results {
		resp.Items[i] = batchResultToResponse(res)
		if res.Status() == dombatch.StatusOK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ingest.Delete(r.Context(), chirouter.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewChunks handles POST /api/v1/chunks/preview.
func (s *Server) PreviewChunks(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	in, err := inputFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	if in.ID == "" {
		in.ID = "preview"
	}

	res, err := s.ingest.Preview(r.Context(), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewToResponse(res))
}

// Retrieve handles POST /api/v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}
	rr, err := requestFromRetrieve(req, s.defaults, s.maxK)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.retrieve.Retrieve(ctx, rr)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, RetrieveResponse{Items: result.Records(hits), Total: len(hits)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	var latency map[string]int64
	if len(report.Latency) > 0 {
		latency = make(map[string]int64, len(report.Latency))
		for k, d := range report.Latency {
			latency[k] = d.Milliseconds()
		}
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		logger.FromContextOr(r.Context(), s.logger).Warn("Health degraded",
			zap.Strings("failing", report.Failing()))
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:    string(report.Status),
		Checks:    checks,
		Details:   report.Details,
		LatencyMs: latency,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// setEmbeddingHeaders reports provider tokens spent on the request.
func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}
