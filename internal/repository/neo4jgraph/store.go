// Package neo4jgraph stores chunks as (:Chunk) nodes linked to their (:Document)
// and to each other by typed relationships. Vector search uses a native vector
// index and keyword search a Lucene fulltext index.
package neo4jgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

// Store implements graph.Store on Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	dims     int
}

// NewDriver opens a driver with basic auth.
func NewDriver(uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return driver, nil
}

// New creates a store on an open driver.
func New(driver neo4j.DriverWithContext, dims int) *Store {
	return &Store{driver: driver, dims: dims}
}

// WithDatabase selects a non-default database.
func (s *Store) WithDatabase(name string) *Store {
	s.database = name
	return s
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates constraints and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dims) {
		if _, err := neo4j.ExecuteQuery(ctx, s.driver, stmt, nil,
			neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithWritersRouting())...); err != nil {
			return unavailable("schema", err)
		}
	}
	return nil
}

// WithDocument replaces doc's chunks and relationships in one write transaction.
func (s *Store) WithDocument(ctx context.Context, doc document.Document, fn func(w graph.Writer) error) error {
	b, err := graph.Stage(doc, fn)
	if err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, s.session(neo4j.AccessModeWrite))
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, upsertDocumentQuery, map[string]any{
			"id":     doc.ID(),
			"title":  doc.Title(),
			"source": doc.Source(),
			"type":   string(doc.Type()),
		}); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}
		if _, err := tx.Run(ctx, clearChunksQuery, map[string]any{"id": doc.ID()}); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		props := make([]any, len(b.Chunks()))
		for i, c := range b.Chunks() {
			props[i] = chunkProps(c)
		}
		if len(props) > 0 {
			if _, err := tx.Run(ctx, createChunksQuery, map[string]any{
				"doc_id": doc.ID(),
				"chunks": props,
			}); err != nil {
				return nil, fmt.Errorf("create chunk nodes: %w", err)
			}
		}

		for rel, edges := range edgesByRelation(b.Edges()) {
			if _, err := tx.Run(ctx, linkQuery(rel), map[string]any{"edges": edges}); err != nil {
				return nil, fmt.Errorf("link %s: %w", rel, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return unavailable("write document "+doc.ID(), err)
	}
	return nil
}

func edgesByRelation(edges []graph.Edge) map[graph.Relation][]any {
	out := make(map[graph.Relation][]any)
	for _, e := range edges {
		out[e.Type] = append(out[e.Type], map[string]any{
			"from":    e.From,
			"to":      e.To,
			"overlap": int64(e.OverlapTokens),
		})
	}
	return out
}

// DeleteDocument removes the document node and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, deleteDocumentQuery, map[string]any{"id": id},
		neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithWritersRouting())...)
	if err != nil {
		return unavailable("delete document "+id, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("delete %s: %w", id, domain.ErrDocumentNotFound)
	}
	if n, _ := res.Records[0].Get("deleted"); num(n) == 0 {
		return fmt.Errorf("delete %s: %w", id, domain.ErrDocumentNotFound)
	}
	return nil
}

// VectorSearch queries the vector index and post-filters in Cypher.
func (s *Store) VectorSearch(
	ctx context.Context, vector []float32, k int, threshold float64, f filter.Filters,
) ([]graph.Scored, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query has %d dims, index %d: %w", len(vector), s.dims, domain.ErrVectorDimMismatch)
	}
	params := searchParams(f, k)
	vec := make([]float64, len(vector))
	for i, v := range vector {
		vec[i] = float64(v)
	}
	params["vector"] = vec

	hits, err := s.search(ctx, vectorQuery, params, cosineFromIndex)
	if err != nil {
		return nil, err
	}
	out := hits[:0]
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out, nil
}

// KeywordSearch queries the fulltext index with the query words OR-ed.
func (s *Store) KeywordSearch(ctx context.Context, query string, k int, f filter.Filters) ([]graph.Scored, error) {
	q := luceneQuery(query)
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	params := searchParams(f, k)
	params["query"] = q
	return s.search(ctx, keywordQuery, params, nil)
}

func (s *Store) search(
	ctx context.Context, query string, params map[string]any, convert func(float64) float64,
) ([]graph.Scored, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return nil, unavailable("search", err)
	}

	out := make([]graph.Scored, 0, len(res.Records))
	for _, rec := range res.Records {
		raw, _ := rec.Get("chunk")
		c, err := decodeChunk(raw)
		if err != nil {
			return nil, err
		}
		sv, _ := rec.Get("score")
		score, _ := sv.(float64)
		if convert != nil {
			score = convert(score)
		}
		out = append(out, graph.Scored{Chunk: c, Score: score})
	}
	return out, nil
}

// Neighbors returns outgoing relationships plus incoming NEXT_CHUNK.
func (s *Store) Neighbors(ctx context.Context, id string) ([]graph.Neighbor, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, neighborsQuery, map[string]any{"id": id},
		neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return nil, unavailable("neighbors", err)
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	v, _ := res.Records[0].Get("neighbors")
	return decodeNeighbors(v), nil
}

// GetChunks fetches chunks in the order of ids, skipping missing ones.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	res, err := neo4j.ExecuteQuery(ctx, s.driver, getChunksQuery, map[string]any{"ids": ids},
		neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return nil, unavailable("get chunks", err)
	}

	byID := make(map[string]chunk.Chunk, len(res.Records))
	for _, rec := range res.Records {
		raw, _ := rec.Get("chunk")
		c, err := decodeChunk(raw)
		if err != nil {
			return nil, err
		}
		byID[c.ID()] = c
	}
	out := make([]chunk.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) session(mode neo4j.AccessMode) neo4j.SessionConfig {
	return neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database}
}

func (s *Store) queryOpts(routing neo4j.ExecuteQueryConfigurationOption) []neo4j.ExecuteQueryConfigurationOption {
	opts := []neo4j.ExecuteQueryConfigurationOption{routing}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return opts
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

var _ graph.Store = (*Store)(nil)
