package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects provider tokens spent on one ingest or retrieval call.
// The caller puts it into the context; the embedding generator adds to it.
// Read the fields only after the call returns.
type EmbeddingUsage struct {
	mu          sync.Mutex
	TotalTokens int
	Calls       int
	Used        bool // true once the provider was called, even if it reported 0 tokens
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector in ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one provider call. Safe on a nil receiver and from batch workers.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.TotalTokens += n
		u.Calls++
		u.Used = true
	}
}
