// Package pggraph stores the chunk graph in PostgreSQL: pgvector HNSW for
// similarity, a generated tsvector for keyword search and an edge table.
package pggraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

// pool is the consumer interface over *pgxpool.Pool (ISP).
type pool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Store implements graph.Store on PostgreSQL.
type Store struct {
	pool   pool
	dims   int
	logger *zap.Logger
}

// NewPool opens a connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return p, nil
}

// New creates a store.
func New(p pool, dims int, logger *zap.Logger) *Store {
	return &Store{pool: p, dims: dims, logger: logger}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// EnsureSchema creates the extension, tables and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dims) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return unavailable("schema", err)
		}
	}
	return nil
}

// WithDocument replaces doc's chunks and edges inside one transaction.
func (s *Store) WithDocument(ctx context.Context, doc document.Document, fn func(w graph.Writer) error) (err error) {
	b, err := graph.Stage(doc, fn)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Warn("Rollback failed", zap.String("document_id", doc.ID()), zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.Exec(ctx, upsertDocumentSQL,
		doc.ID(), doc.Title(), doc.Source(), string(doc.Type())); err != nil {
		return unavailable("upsert document", err)
	}
	if _, err = tx.Exec(ctx, "DELETE FROM clinrag_chunks WHERE document_id = $1", doc.ID()); err != nil {
		return unavailable("clear existing chunks", err)
	}
	for _, c := range b.Chunks() {
		if _, err = tx.Exec(ctx, insertChunkSQL, chunkArgs(c)...); err != nil {
			return unavailable("insert chunk "+c.ID(), err)
		}
	}
	for _, e := range b.Edges() {
		if _, err = tx.Exec(ctx, insertEdgeSQL, e.From, e.To, string(e.Type), e.OverlapTokens); err != nil {
			return unavailable("insert edge", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func chunkArgs(c chunk.Chunk) []any {
	var vec any
	if len(c.Embedding()) > 0 {
		vec = pgvector.NewVector(c.Embedding())
	}
	path := c.SectionPath()
	if path == nil {
		path = []string{}
	}
	pages := make([]int32, len(c.PageNumbers()))
	for i, p := range c.PageNumbers() {
		pages[i] = int32(p)
	}
	return []any{
		c.ID(), c.DocumentID(), string(c.DocumentType()), c.Ordinal(), c.Content(),
		path, string(c.SemanticType()), c.EvidenceLevel(), c.RecommendationStrength(), pages,
		c.Oversized(), c.OverlapTokens(), c.TokenCount(), vec,
	}
}

// DeleteDocument removes the document; chunks and edges cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM clinrag_documents WHERE id = $1", id)
	if err != nil {
		return unavailable("delete document "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, domain.ErrDocumentNotFound)
	}
	return nil
}

// VectorSearch ranks by cosine similarity through the HNSW index.
func (s *Store) VectorSearch(
	ctx context.Context, vector []float32, k int, threshold float64, f filter.Filters,
) ([]graph.Scored, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query has %d dims, index %d: %w", len(vector), s.dims, domain.ErrVectorDimMismatch)
	}
	args := append(filterArgs(f), pgvector.NewVector(vector), threshold, k)
	return s.query(ctx, vectorSQL, args...)
}

// KeywordSearch ranks by ts_rank_cd over the english tsvector.
func (s *Store) KeywordSearch(ctx context.Context, query string, k int, f filter.Filters) ([]graph.Scored, error) {
	q := websearchQuery(query)
	if q == "" {
		return nil, nil
	}
	args := append(filterArgs(f), q, k)
	return s.query(ctx, keywordSQL, args...)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]graph.Scored, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	var out []graph.Scored
	for rows.Next() {
		var score float64
		c, err := scanChunk(rows, &score)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.Scored{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search rows", err)
	}
	return out, nil
}

// Neighbors returns outgoing edges plus incoming NEXT_CHUNK.
func (s *Store) Neighbors(ctx context.Context, id string) ([]graph.Neighbor, error) {
	rows, err := s.pool.Query(ctx, neighborsSQL, id)
	if err != nil {
		return nil, unavailable("neighbors", err)
	}
	defer rows.Close()

	var out []graph.Neighbor
	for rows.Next() {
		var (
			peer, relation string
			incoming       bool
		)
		if err := rows.Scan(&peer, &relation, &incoming); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		rel, ok := graph.ParseRelation(relation)
		if !ok {
			continue
		}
		out = append(out, graph.Neighbor{ChunkID: peer, Relation: rel, Incoming: incoming})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("neighbors rows", err)
	}
	return out, nil
}

// GetChunks fetches chunks in the order of ids, skipping missing ones.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, getChunksSQL, ids)
	if err != nil {
		return nil, unavailable("get chunks", err)
	}
	defer rows.Close()

	byID := make(map[string]chunk.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows, nil)
		if err != nil {
			return nil, err
		}
		byID[c.ID()] = c
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get chunks rows", err)
	}

	out := make([]chunk.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// scanChunk reads chunkColumns and, when score is non-nil, a trailing score column.
func scanChunk(rows pgx.Rows, score *float64) (chunk.Chunk, error) {
	var (
		id, docID, docType, content, semType, level, strength string
		ordinal, overlap, tokens                               int32
		path                                                   []string
		pages                                                  []int32
		oversized                                              bool
		vec                                                    *pgvector.Vector
	)
	dest := []any{
		&id, &docID, &docType, &ordinal, &content, &path, &semType, &level, &strength,
		&pages, &oversized, &overlap, &tokens, &vec,
	}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return chunk.Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}

	var emb []float32
	if vec != nil {
		emb = vec.Slice()
	}
	pageNumbers := make([]int, len(pages))
	for i, p := range pages {
		pageNumbers[i] = int(p)
	}
	return chunk.Reconstruct(id, chunk.Params{
		DocumentID:             docID,
		DocumentType:           document.Type(docType),
		Ordinal:                int(ordinal),
		Content:                content,
		SectionPath:            path,
		SemanticType:           chunk.SemanticType(semType),
		EvidenceLevel:          level,
		RecommendationStrength: strength,
		PageNumbers:            pageNumbers,
		Oversized:              oversized,
		OverlapTokens:          int(overlap),
	}, int(tokens), emb), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

var _ graph.Store = (*Store)(nil)
