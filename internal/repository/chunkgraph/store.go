// Package chunkgraph stores the chunk graph in Redis hashes under an FT index:
// HNSW cosine over the chunk vectors, BM25 over content and TAG fields for filters.
package chunkgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/db"
	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

// store is the consumer interface for the graph (ISP).
//
//nolint:interfacebloat // graph needs hash reads, index management, search and transactions
type store interface {
	Ping(ctx context.Context) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	Exec(ctx context.Context, muts []db.Mutation) error
}

// sectionPathWeight makes a heading match count twice a body match.
const sectionPathWeight = 2

// HNSWConfig tunes the vector index. Zero values keep the defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
	EFRuntime   int
}

// Store implements graph.Store on Redis.
type Store struct {
	store store
	keys  keys
	dims  int
	hnsw  HNSWConfig
}

// New creates a graph store. dims is the embedding width the index is built for.
func New(s store, keyPrefix string, dims int) *Store {
	return &Store{store: s, keys: keys{prefix: keyPrefix}, dims: dims, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (s *Store) WithHNSW(cfg HNSWConfig) *Store {
	if cfg.M > 0 {
		s.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		s.hnsw.EFConstruct = cfg.EFConstruct
	}
	if cfg.EFRuntime > 0 {
		s.hnsw.EFRuntime = cfg.EFRuntime
	}
	return s
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// EnsureSchema creates the chunk index when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	exists, err := s.store.IndexExists(ctx, s.keys.index())
	if err != nil {
		return unavailable("index exists", err)
	}
	if exists {
		return nil
	}

	def, err := s.indexDefinition()
	if err != nil {
		return err
	}
	if err := s.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return unavailable("create index", err)
	}
	return nil
}

// RebuildIndex drops the chunk index and creates it again from the current
// dims and HNSW settings. Chunk hashes stay in place and are reindexed by Redis.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if err := s.store.DropIndex(ctx, s.keys.index()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return unavailable("drop index", err)
	}
	def, err := s.indexDefinition()
	if err != nil {
		return err
	}
	if err := s.store.CreateIndex(ctx, def); err != nil {
		return unavailable("create index", err)
	}
	return nil
}

func (s *Store) indexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(s.keys.index()).
		Prefix(s.keys.chunkPrefix()).
		Tag(fDocumentID).
		Tag(fDocumentType).
		Tag(fSemanticType).
		Tag(fEvidenceLevel).
		Numeric(fOrdinal).Sortable().
		Text(fContent).
		WeightedText(fSectionPath, sectionPathWeight).
		VectorHNSW(fVector, db.VectorParams{
			Dim:            s.dims,
			Distance:       db.DistanceCosine,
			M:              s.hnsw.M,
			EFConstruction: s.hnsw.EFConstruct,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build chunk index: %w", err)
	}
	return def, nil
}

// WithDocument replaces doc's chunks, edges and metadata in one MULTI/EXEC.
func (s *Store) WithDocument(ctx context.Context, doc document.Document, fn func(w graph.Writer) error) error {
	b, err := graph.Stage(doc, fn)
	if err != nil {
		return err
	}

	old, err := s.store.SMembers(ctx, s.keys.docChunks(doc.ID()))
	if err != nil {
		return unavailable("read previous chunks", err)
	}

	muts := s.deletions(doc.ID(), old)
	muts = append(muts, db.HSet(s.keys.doc(doc.ID()), encodeDocument(doc)))

	ids := make([]string, 0, len(b.Chunks()))
	for _, c := range b.Chunks() {
		muts = append(muts, db.HSet(s.keys.chunk(c.ID()), encodeChunk(c)))
		ids = append(ids, c.ID())
	}
	muts = append(muts, db.SAdd(s.keys.docChunks(doc.ID()), ids...))
	for owner, fields := range edgeFields(b.Edges()) {
		muts = append(muts, db.HSet(s.keys.edges(owner), fields))
	}

	if err := s.store.Exec(ctx, muts); err != nil {
		return unavailable("write document "+doc.ID(), err)
	}
	return nil
}

// DeleteDocument removes doc, its chunks and their edges.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	exists, err := s.store.Exists(ctx, s.keys.doc(id))
	if err != nil {
		return unavailable("exists", err)
	}
	if !exists {
		return fmt.Errorf("delete %s: %w", id, domain.ErrDocumentNotFound)
	}

	members, err := s.store.SMembers(ctx, s.keys.docChunks(id))
	if err != nil {
		return unavailable("read chunks", err)
	}
	if err := s.store.Exec(ctx, s.deletions(id, members)); err != nil {
		return unavailable("delete document "+id, err)
	}
	return nil
}

func (s *Store) deletions(docID string, chunkIDs []string) []db.Mutation {
	muts := make([]db.Mutation, 0, 2*len(chunkIDs)+2)
	for _, id := range chunkIDs {
		muts = append(muts, db.Del(s.keys.chunk(id)), db.Del(s.keys.edges(id)))
	}
	return append(muts, db.Del(s.keys.docChunks(docID)), db.Del(s.keys.doc(docID)))
}

// VectorSearch runs KNN with the filters as a pre-filter and drops hits below threshold.
func (s *Store) VectorSearch(
	ctx context.Context, vector []float32, k int, threshold float64, f filter.Filters,
) ([]graph.Scored, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query has %d dims, index %d: %w", len(vector), s.dims, domain.ErrVectorDimMismatch)
	}
	res, err := s.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    s.keys.index(),
		Filters:      db.Filters(f.Strings()),
		Vector:       vector,
		K:            k,
		EFRuntime:    s.hnsw.EFRuntime,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, unavailable("knn", err)
	}

	out := make([]graph.Scored, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Score < threshold {
			continue
		}
		c, err := s.entryChunk(e)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.Scored{Chunk: c, Score: e.Score})
	}
	return out, nil
}

// KeywordSearch runs BM25 over content and section headings, headings
// weighted double. Blank queries return nothing.
func (s *Store) KeywordSearch(ctx context.Context, query string, k int, f filter.Filters) ([]graph.Scored, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	res, err := s.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    s.keys.index(),
		Fields:       []string{fContent, fSectionPath},
		Query:        query,
		Filters:      db.Filters(f.Strings()),
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, unavailable("bm25", err)
	}

	out := make([]graph.Scored, 0, len(res.Entries))
	for _, e := range res.Entries {
		c, err := s.entryChunk(e)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.Scored{Chunk: c, Score: e.Score})
	}
	return out, nil
}

func (s *Store) entryChunk(e db.SearchEntry) (chunk.Chunk, error) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if e.Fields[fID] == "" {
		e.Fields[fID] = s.keys.chunkID(e.Key)
	}
	c, err := decodeChunk(e.Fields)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("decode %s: %w", e.Key, err)
	}
	return c, nil
}

// Neighbors reads the edges hash of id.
func (s *Store) Neighbors(ctx context.Context, id string) ([]graph.Neighbor, error) {
	m, err := s.store.HGetAll(ctx, s.keys.edges(id))
	if err != nil {
		return nil, unavailable("edges", err)
	}
	return decodeNeighbors(m), nil
}

// GetChunks fetches chunks in the order of ids, skipping missing ones.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	hkeys := make([]string, len(ids))
	for i, id := range ids {
		hkeys[i] = s.keys.chunk(id)
	}
	maps, err := s.store.HGetAllMulti(ctx, hkeys)
	if err != nil {
		return nil, unavailable("get chunks", err)
	}

	out := make([]chunk.Chunk, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		c, err := decodeChunk(m)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", hkeys[i], err)
		}
		out = append(out, c)
	}
	return out, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

var _ graph.Store = (*Store)(nil)
