package neo4jgraph

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

// Index names.
const (
	vectorIndex   = "chunk_embedding"
	fulltextIndex = "chunk_content"
)

func schemaStatements(dims int) []string {
	return []string{
		"CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE",
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON c.embedding "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			vectorIndex, dims),
		fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (c:Chunk) ON EACH [c.content]", fulltextIndex),
	}
}

// filterClause is a WHERE fragment over c; empty lists match everything.
const filterClause = `($document_types = [] OR c.document_type IN $document_types)
  AND ($semantic_types = [] OR c.semantic_type IN $semantic_types)
  AND ($evidence_levels = [] OR toUpper(c.evidence_level) IN $evidence_levels)
  AND ($document_ids = [] OR c.document_id IN $document_ids)`

const vectorQuery = `CALL db.index.vector.queryNodes('` + vectorIndex + `', $candidates, $vector)
YIELD node AS c, score
WHERE ` + filterClause + `
RETURN c {.*} AS chunk, score
ORDER BY score DESC, c.id
LIMIT $k`

const keywordQuery = `CALL db.index.fulltext.queryNodes('` + fulltextIndex + `', $query, {limit: $candidates})
YIELD node AS c, score
WHERE ` + filterClause + `
RETURN c {.*} AS chunk, score
ORDER BY score DESC, c.id
LIMIT $k`

const neighborsQuery = `MATCH (c:Chunk {id: $id})
OPTIONAL MATCH (c)-[r]->(n:Chunk)
WITH c, collect({id: n.id, rel: type(r), incoming: false}) AS out
OPTIONAL MATCH (p:Chunk)-[:NEXT_CHUNK]->(c)
WITH out, collect({id: p.id, rel: 'NEXT_CHUNK', incoming: true}) AS in
RETURN out + in AS neighbors`

const getChunksQuery = `UNWIND $ids AS id
MATCH (c:Chunk {id: id})
RETURN c {.*} AS chunk`

const upsertDocumentQuery = `MERGE (d:Document {id: $id})
SET d.title = $title, d.source = $source, d.type = $type`

const clearChunksQuery = `MATCH (c:Chunk)-[:BELONGS_TO]->(:Document {id: $id})
DETACH DELETE c`

const createChunksQuery = `MATCH (d:Document {id: $doc_id})
UNWIND $chunks AS props
CREATE (c:Chunk)
SET c = props
CREATE (c)-[:BELONGS_TO]->(d)`

const deleteDocumentQuery = `MATCH (d:Document {id: $id})
OPTIONAL MATCH (c:Chunk)-[:BELONGS_TO]->(d)
DETACH DELETE c, d
RETURN count(DISTINCT d) AS deleted`

// linkQuery creates edges of one relation type. rel comes from the closed
// Relation set, never from input.
func linkQuery(rel graph.Relation) string {
	return `UNWIND $edges AS e
MATCH (a:Chunk {id: e.from}), (b:Chunk {id: e.to})
CREATE (a)-[:` + string(rel) + ` {overlap_tokens: e.overlap}]->(b)`
}

// searchParams builds the common parameters of the search queries.
func searchParams(f filter.Filters, k int) map[string]any {
	docTypes := make([]any, 0, len(f.DocumentTypes()))
	for _, t := range f.DocumentTypes() {
		docTypes = append(docTypes, string(t))
	}
	semTypes := make([]any, 0, len(f.SemanticTypes()))
	for _, t := range f.SemanticTypes() {
		semTypes = append(semTypes, string(t))
	}
	levels := make([]any, 0, len(f.EvidenceLevels()))
	for _, l := range f.EvidenceLevels() {
		levels = append(levels, strings.ToUpper(l))
	}
	ids := make([]any, 0, len(f.DocumentIDs()))
	for _, id := range f.DocumentIDs() {
		ids = append(ids, id)
	}

	candidates := k
	if !f.IsEmpty() {
		// the indexes cannot pre-filter, so over-fetch before the WHERE
		candidates = k * 4
	}
	return map[string]any{
		"document_types":  docTypes,
		"semantic_types":  semTypes,
		"evidence_levels": levels,
		"document_ids":    ids,
		"k":               k,
		"candidates":      candidates,
	}
}

// luceneQuery ORs the escaped words of q.
func luceneQuery(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = luceneEscaper.Replace(w)
	}
	return strings.Join(words, " OR ")
}

var luceneEscaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

// cosineFromIndex maps the vector index score, (1+cos)/2, back to cosine.
func cosineFromIndex(s float64) float64 { return 2*s - 1 }

func chunkProps(c chunk.Chunk) map[string]any {
	emb := make([]float64, len(c.Embedding()))
	for i, v := range c.Embedding() {
		emb[i] = float64(v)
	}
	pages := make([]int64, len(c.PageNumbers()))
	for i, p := range c.PageNumbers() {
		pages[i] = int64(p)
	}
	return map[string]any{
		"id":                      c.ID(),
		"document_id":             c.DocumentID(),
		"document_type":           string(c.DocumentType()),
		"ordinal":                 int64(c.Ordinal()),
		"content":                 c.Content(),
		"section_path":            c.SectionPath(),
		"semantic_type":           string(c.SemanticType()),
		"evidence_level":          c.EvidenceLevel(),
		"recommendation_strength": c.RecommendationStrength(),
		"page_numbers":            pages,
		"oversized":               c.Oversized(),
		"overlap_tokens":          int64(c.OverlapTokens()),
		"token_count":             int64(c.TokenCount()),
		"embedding":               emb,
	}
}

func decodeChunk(v any) (chunk.Chunk, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return chunk.Chunk{}, fmt.Errorf("unexpected chunk value %T", v)
	}
	id, _ := m["id"].(string)
	if id == "" {
		return chunk.Chunk{}, fmt.Errorf("chunk node without id")
	}

	var emb []float32
	for _, x := range asList(m["embedding"]) {
		if f, ok := x.(float64); ok {
			emb = append(emb, float32(f))
		}
	}
	var pages []int
	for _, x := range asList(m["page_numbers"]) {
		if n, ok := x.(int64); ok {
			pages = append(pages, int(n))
		}
	}
	var path []string
	for _, x := range asList(m["section_path"]) {
		if s, ok := x.(string); ok {
			path = append(path, s)
		}
	}
	oversized, _ := m["oversized"].(bool)

	return chunk.Reconstruct(id, chunk.Params{
		DocumentID:             str(m["document_id"]),
		DocumentType:           document.Type(str(m["document_type"])),
		Ordinal:                int(num(m["ordinal"])),
		Content:                str(m["content"]),
		SectionPath:            path,
		SemanticType:           chunk.SemanticType(str(m["semantic_type"])),
		EvidenceLevel:          str(m["evidence_level"]),
		RecommendationStrength: str(m["recommendation_strength"]),
		PageNumbers:            pages,
		Oversized:              oversized,
		OverlapTokens:          int(num(m["overlap_tokens"])),
	}, int(num(m["token_count"])), emb), nil
}

func decodeNeighbors(v any) []graph.Neighbor {
	var out []graph.Neighbor
	for _, x := range asList(v) {
		m, ok := x.(map[string]any)
		if !ok {
			continue
		}
		id := str(m["id"])
		rel, ok := graph.ParseRelation(str(m["rel"]))
		if id == "" || !ok {
			continue
		}
		incoming, _ := m["incoming"].(bool)
		out = append(out, graph.Neighbor{ChunkID: id, Relation: rel, Incoming: incoming})
	}
	return out
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
