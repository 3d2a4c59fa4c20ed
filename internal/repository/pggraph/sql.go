package pggraph

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

func schemaStatements(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS clinrag_documents (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			source     TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS clinrag_chunks (
			id                      TEXT PRIMARY KEY,
			document_id             TEXT NOT NULL REFERENCES clinrag_documents(id) ON DELETE CASCADE,
			document_type           TEXT NOT NULL,
			ordinal                 INT NOT NULL,
			content                 TEXT NOT NULL,
			section_path            TEXT[] NOT NULL DEFAULT '{}',
			semantic_type           TEXT NOT NULL,
			evidence_level          TEXT NOT NULL DEFAULT '',
			recommendation_strength TEXT NOT NULL DEFAULT '',
			page_numbers            INT[] NOT NULL DEFAULT '{}',
			oversized               BOOLEAN NOT NULL DEFAULT FALSE,
			overlap_tokens          INT NOT NULL DEFAULT 0,
			token_count             INT NOT NULL DEFAULT 0,
			embedding               vector(%d),
			tsv                     tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, dims),
		`CREATE INDEX IF NOT EXISTS clinrag_chunks_document_idx ON clinrag_chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS clinrag_chunks_embedding_idx ON clinrag_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS clinrag_chunks_tsv_idx ON clinrag_chunks USING gin (tsv)`,
		`CREATE TABLE IF NOT EXISTS clinrag_edges (
			from_id        TEXT NOT NULL REFERENCES clinrag_chunks(id) ON DELETE CASCADE,
			to_id          TEXT NOT NULL REFERENCES clinrag_chunks(id) ON DELETE CASCADE,
			relation       TEXT NOT NULL,
			overlap_tokens INT NOT NULL DEFAULT 0,
			PRIMARY KEY (from_id, to_id, relation)
		)`,
		`CREATE INDEX IF NOT EXISTS clinrag_edges_to_idx ON clinrag_edges (to_id, relation)`,
	}
}

const chunkColumns = `c.id, c.document_id, c.document_type, c.ordinal, c.content, c.section_path,
	c.semantic_type, c.evidence_level, c.recommendation_strength, c.page_numbers, c.oversized,
	c.overlap_tokens, c.token_count, c.embedding`

// filterSQL applies the four filter arrays bound at $1..$4.
const filterSQL = `(cardinality($1::text[]) = 0 OR c.document_type = ANY($1))
	AND (cardinality($2::text[]) = 0 OR c.semantic_type = ANY($2))
	AND (cardinality($3::text[]) = 0 OR upper(c.evidence_level) = ANY($3))
	AND (cardinality($4::text[]) = 0 OR c.document_id = ANY($4))`

// $5 vector, $6 threshold, $7 k
const vectorSQL = `SELECT ` + chunkColumns + `, 1 - (c.embedding <=> $5::vector) AS score
FROM clinrag_chunks c
WHERE c.embedding IS NOT NULL AND ` + filterSQL + `
	AND 1 - (c.embedding <=> $5::vector) >= $6
ORDER BY c.embedding <=> $5::vector, c.id
LIMIT $7`

// $5 websearch query, $6 k
const keywordSQL = `SELECT ` + chunkColumns + `, ts_rank_cd(c.tsv, q) AS score
FROM clinrag_chunks c, websearch_to_tsquery('english', $5) q
WHERE c.tsv @@ q AND ` + filterSQL + `
ORDER BY score DESC, c.id
LIMIT $6`

const neighborsSQL = `SELECT to_id, relation, FALSE FROM clinrag_edges WHERE from_id = $1
UNION ALL
SELECT from_id, relation, TRUE FROM clinrag_edges WHERE to_id = $1 AND relation = 'NEXT_CHUNK'`

const getChunksSQL = `SELECT ` + chunkColumns + ` FROM clinrag_chunks c WHERE c.id = ANY($1)`

const upsertDocumentSQL = `INSERT INTO clinrag_documents (id, title, source, type, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, source = EXCLUDED.source,
	type = EXCLUDED.type, updated_at = NOW()`

const insertChunkSQL = `INSERT INTO clinrag_chunks (id, document_id, document_type, ordinal, content,
	section_path, semantic_type, evidence_level, recommendation_strength, page_numbers, oversized,
	overlap_tokens, token_count, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::vector)`

const insertEdgeSQL = `INSERT INTO clinrag_edges (from_id, to_id, relation, overlap_tokens)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING`

// filterArgs returns $1..$4. Empty slices, never nil, so cardinality() sees 0.
func filterArgs(f filter.Filters) []any {
	docTypes := make([]string, 0, len(f.DocumentTypes()))
	for _, t := range f.DocumentTypes() {
		docTypes = append(docTypes, string(t))
	}
	semTypes := make([]string, 0, len(f.SemanticTypes()))
	for _, t := range f.SemanticTypes() {
		semTypes = append(semTypes, string(t))
	}
	levels := make([]string, 0, len(f.EvidenceLevels()))
	for _, l := range f.EvidenceLevels() {
		levels = append(levels, strings.ToUpper(l))
	}
	ids := append(make([]string, 0, len(f.DocumentIDs())), f.DocumentIDs()...)
	return []any{docTypes, semTypes, levels, ids}
}

// websearchQuery turns free text into "a or b or c" for websearch_to_tsquery,
// dropping punctuation so no word reads as an operator.
func websearchQuery(q string) string {
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	kept := words[:0]
	for _, w := range words {
		if strings.EqualFold(w, "or") {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " or ")
}
