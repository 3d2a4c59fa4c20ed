package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNewEmbeddingFailure(t *testing.T) {
	cause := fmt.Errorf("%w: 502 bad gateway", ErrEmbeddingProviderError)
	err := NewEmbeddingFailure(cause)

	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Error("expected ErrEmbeddingUnavailable")
	}
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Error("expected provider cause to stay reachable")
	}
	if !IsRetryable(err) {
		t.Error("embedding failures are retryable")
	}
	if NewEmbeddingFailure(nil) != nil {
		t.Error("nil must stay nil")
	}
	if again := NewEmbeddingFailure(err); again != err {
		t.Error("already wrapped errors must not be wrapped twice")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("store: %w", ErrStorageUnavailable), true},
		{ErrRateLimited, true},
		{ErrInvalidQuery, false},
		{context.DeadlineExceeded, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
