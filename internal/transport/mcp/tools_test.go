package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

func sampleChunk(ordinal int, content string) chunk.Chunk {
	return chunk.New(chunk.Params{
		DocumentID:    "aua-2023",
		DocumentType:  document.Guideline,
		Ordinal:       ordinal,
		Content:       content,
		SectionPath:   []string{"Localized Disease", "Low Risk"},
		SemanticType:  chunk.Recommendation,
		EvidenceLevel: "A",
	}, tokenizer.NewLexical())
}

func newTestServer(t *testing.T, ret *mockRetriever, prev *mockPreviewer, defaults request.Options) *Server {
	t.Helper()
	var p Previewer
	if prev != nil {
		p = prev
	}
	s, err := NewServer(ret, p, defaults, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns flattened records", func(t *testing.T) {
		c := sampleChunk(0, "Clinicians should offer active surveillance.")
		ret := &mockRetriever{hits: []result.Hit{result.New(c, 0.91, result.SourceHybrid)}}
		s := newTestServer(t, ret, nil, request.Options{})

		_, out, err := s.handleRetrieve(ctx, nil, RetrieveInput{Query: "active surveillance"})

		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
		require.Len(t, out.Results, 1)
		assert.Equal(t, c.ID(), out.Results[0].ChunkID)
		assert.Equal(t, "aua-2023", out.Results[0].DocumentID)
		assert.Equal(t, "recommendation", out.Results[0].SemanticType)
		assert.Equal(t, "A", out.Results[0].EvidenceLevel)
		assert.InDelta(t, 0.91, out.Results[0].Score, 1e-9)
	})

	t.Run("empty result is a non-nil list", func(t *testing.T) {
		s := newTestServer(t, &mockRetriever{}, nil, request.Options{})

		_, out, err := s.handleRetrieve(ctx, nil, RetrieveInput{Query: "nothing"})

		require.NoError(t, err)
		assert.NotNil(t, out.Results)
		assert.Equal(t, 0, out.Count)
	})

	t.Run("configured defaults apply", func(t *testing.T) {
		ret := &mockRetriever{}
		s := newTestServer(t, ret, nil, request.Options{K: 8, Rerank: true, MMR: true})

		_, _, err := s.handleRetrieve(ctx, nil, RetrieveInput{Query: "psa screening"})

		require.NoError(t, err)
		opts := ret.last.Options()
		assert.Equal(t, 8, opts.K)
		assert.True(t, opts.Rerank)
		assert.True(t, opts.MMR)
		assert.Equal(t, mode.Hybrid, opts.Mode)
	})

	t.Run("caller overrides win", func(t *testing.T) {
		ret := &mockRetriever{}
		s := newTestServer(t, ret, nil, request.Options{K: 8, Rerank: true})
		off, on := false, true

		_, _, err := s.handleRetrieve(ctx, nil, RetrieveInput{
			Query:          "psa screening",
			K:              3,
			Mode:           "keyword",
			EvidenceLevels: []string{"A", "B"},
			Rerank:         &off,
			Expand:         &on,
		})

		require.NoError(t, err)
		opts := ret.last.Options()
		assert.Equal(t, 3, opts.K)
		assert.Equal(t, mode.Keyword, opts.Mode)
		assert.False(t, opts.Rerank)
		assert.True(t, opts.Expand)
		assert.Equal(t, []string{"A", "B"}, ret.last.Filters().Strings()["evidence_level"])
	})

	t.Run("invalid input is rejected before retrieval", func(t *testing.T) {
		tests := []struct {
			name  string
			input RetrieveInput
		}{
			{"empty query", RetrieveInput{Query: "  "}},
			{"k too large", RetrieveInput{Query: "q", K: request.MaxK + 1}},
			{"unknown mode", RetrieveInput{Query: "q", Mode: "fuzzy"}},
			{"unknown document type", RetrieveInput{Query: "q", DocumentTypes: []string{"poster"}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ret := &mockRetriever{}
				s := newTestServer(t, ret, nil, request.Options{})

				_, _, err := s.handleRetrieve(ctx, nil, tt.input)

				require.Error(t, err)
				assert.Empty(t, ret.last.Query())
			})
		}
	})

	t.Run("retrieval failure surfaces", func(t *testing.T) {
		ret := &mockRetriever{err: domain.ErrStorageUnavailable}
		s := newTestServer(t, ret, nil, request.Options{})

		_, _, err := s.handleRetrieve(ctx, nil, RetrieveInput{Query: "q"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})
}

func TestServer_handleChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns chunk records", func(t *testing.T) {
		c := sampleChunk(0, "Offer active surveillance.")
		prev := &mockPreviewer{res: chunking.Result{
			Type:      document.Guideline,
			Detected:  true,
			Assembler: "guideline",
			Chunks:    []chunk.Chunk{c},
		}}
		s := newTestServer(t, &mockRetriever{}, prev, request.Options{})

		_, out, err := s.handleChunk(ctx, nil, ChunkInput{Text: "Offer active surveillance.", Type: "auto"})

		require.NoError(t, err)
		assert.Equal(t, "guideline", out.Type)
		assert.Equal(t, "guideline", out.Assembler)
		assert.False(t, out.FellBack)
		require.Len(t, out.Chunks, 1)
		assert.Equal(t, c.ID(), out.Chunks[0].ChunkID)
		assert.Equal(t, "preview", prev.last.ID)
		assert.Equal(t, document.Unknown, prev.last.Type)
	})

	t.Run("explicit type and id are passed through", func(t *testing.T) {
		prev := &mockPreviewer{}
		s := newTestServer(t, &mockRetriever{}, prev, request.Options{})

		_, _, err := s.handleChunk(ctx, nil, ChunkInput{Text: "x", Type: "calculator", ID: "chads-vasc"})

		require.NoError(t, err)
		assert.Equal(t, document.Calculator, prev.last.Type)
		assert.Equal(t, "chads-vasc", prev.last.ID)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		s := newTestServer(t, &mockRetriever{}, &mockPreviewer{}, request.Options{})

		_, _, err := s.handleChunk(ctx, nil, ChunkInput{Text: "x", Type: "poster"})

		require.Error(t, err)
	})

	t.Run("preview failure surfaces", func(t *testing.T) {
		prev := &mockPreviewer{err: errors.New("empty text")}
		s := newTestServer(t, &mockRetriever{}, prev, request.Options{})

		_, _, err := s.handleChunk(ctx, nil, ChunkInput{Text: ""})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty text")
	})
}
