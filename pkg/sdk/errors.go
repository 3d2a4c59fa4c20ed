package clinrag

import "github.com/kailas-cloud/clinrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDocumentNotFound          = domain.ErrDocumentNotFound
	ErrInvalidDocument           = domain.ErrInvalidDocument
	ErrInvalidQuery              = domain.ErrInvalidQuery
	ErrVectorDimMismatch         = domain.ErrVectorDimMismatch
	ErrRateLimited               = domain.ErrRateLimited
	ErrEmbeddingUnavailable      = domain.ErrEmbeddingUnavailable
	ErrStorageUnavailable        = domain.ErrStorageUnavailable
	ErrKeywordSearchNotSupported = domain.ErrKeywordSearchNotSupported
)

// IsRetryable reports whether err is transient and the call may be repeated.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }
