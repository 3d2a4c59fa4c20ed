package embcache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/clinrag/internal/db"
	"github.com/kailas-cloud/clinrag/internal/domain"
)

// countingEmbedder returns the text length as a one-component vector and
// charges one token per text.
type countingEmbedder struct {
	mu       sync.Mutex
	embedded []string
	calls    int
	err      error
	short    bool
}

func (e *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	e.embedded = append(e.embedded, text)
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, PromptTokens: 1, TotalTokens: 1}, nil
}

func (e *countingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	e.embedded = append(e.embedded, texts...)
	n := len(texts)
	if e.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: len(texts), TotalTokens: len(texts)}, nil
}

type entry struct {
	value []byte
	ttl   time.Duration
}

// memoryKV is an in-process stand-in for the Redis string commands.
type memoryKV struct {
	mu      sync.Mutex
	entries map[string]entry
	getErr  error
	setErr  error
	gets    int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{entries: make(map[string]entry)}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return e.value, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = entry{value: value, ttl: ttl}
	return nil
}
