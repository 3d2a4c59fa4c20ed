package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/logger"
)

// retryAfterSeconds is sent with every 503 for a transient failure.
const retryAfterSeconds = 5

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// sentinelStatus maps a sentinel error to a response.
type sentinelStatus struct {
	err    error
	status int
	code   string
}

// sentinels is checked in order; the first match wins.
var sentinels = []sentinelStatus{
	{domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed},
	{domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed},
	{domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch},
	{domain.ErrKeywordSearchNotSupported, http.StatusNotImplemented, codeKeywordNotSupported},
	{domain.ErrRateLimited, http.StatusServiceUnavailable, codeRateLimited},
	{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, codeEmbeddingUnavailable},
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, codeStorageUnavailable},
}

func defaultErrorHandlers() []errorHandler {
	handlers := make([]errorHandler, 0, len(sentinels))
	for _, s := range sentinels {
		handlers = append(handlers, sentinelHandler(s.err, s.status, s.code))
	}
	return handlers
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Retryable errors carry Retry-After.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if domain.IsRetryable(err) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.err.Error()
		}
	}
	return "internal error"
}

// errorCode returns the response code for err.
func errorCode(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return codeInternalError
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
