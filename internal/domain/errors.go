package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDocument signals a document that cannot be ingested (bad id, empty text).
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidQuery signals a retrieval request that cannot be executed.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingUnavailable signals that vectors could not be produced (model down, timeout).
	// Ingestion of the affected document is abandoned as a unit; the caller may retry.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrRerankUnavailable signals a cross-encoder failure.
	ErrRerankUnavailable = errors.New("rerank unavailable")
	// ErrStorageUnavailable signals a graph store failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrKeywordSearchNotSupported signals that the backend lacks keyword search.
	ErrKeywordSearchNotSupported = errors.New("keyword search not supported by backend")
)

// IsRetryable reports whether err is transient and the whole operation may be repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrStorageUnavailable)
}

// EmbeddingFailure wraps a provider error so that it matches ErrEmbeddingUnavailable
// while keeping the provider cause reachable through errors.Is/As.
type EmbeddingFailure struct {
	Cause error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("%s: %v", ErrEmbeddingUnavailable.Error(), e.Cause)
}

// Unwrap exposes both the sentinel and the cause.
func (e *EmbeddingFailure) Unwrap() []error { return []error{ErrEmbeddingUnavailable, e.Cause} }

// NewEmbeddingFailure marks err as a retryable embedding failure. nil stays nil.
func NewEmbeddingFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmbeddingUnavailable) {
		return err
	}
	return &EmbeddingFailure{Cause: err}
}
