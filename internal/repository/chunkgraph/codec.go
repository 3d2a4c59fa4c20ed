package chunkgraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/db"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
)

// Hash field names. The TAG and TEXT ones are indexed.
const (
	fID                     = "id"
	fDocumentID             = "document_id"
	fDocumentType           = "document_type"
	fOrdinal                = "ordinal"
	fContent                = "content"
	fSectionPath            = "section_path"
	fSemanticType           = "semantic_type"
	fEvidenceLevel          = "evidence_level"
	fRecommendationStrength = "recommendation_strength"
	fPageNumbers            = "page_numbers"
	fOversized              = "oversized"
	fOverlapTokens          = "overlap_tokens"
	fTokenCount             = "token_count"
	fVector                 = "vector"

	fTitle  = "title"
	fSource = "source"
	fType   = "type"
)

// returnFields are fetched with every search hit.
var returnFields = []string{
	fID, fDocumentID, fDocumentType, fOrdinal, fContent, fSectionPath, fSemanticType,
	fEvidenceLevel, fRecommendationStrength, fPageNumbers, fOversized, fOverlapTokens,
	fTokenCount, fVector,
}

func encodeChunk(c chunk.Chunk) map[string]string {
	pages := make([]string, len(c.PageNumbers()))
	for i, p := range c.PageNumbers() {
		pages[i] = strconv.Itoa(p)
	}
	oversized := "0"
	if c.Oversized() {
		oversized = "1"
	}
	m := map[string]string{
		fID:                     c.ID(),
		fDocumentID:             c.DocumentID(),
		fDocumentType:           string(c.DocumentType()),
		fOrdinal:                strconv.Itoa(c.Ordinal()),
		fContent:                c.Content(),
		fSectionPath:            c.PathString(),
		fSemanticType:           string(c.SemanticType()),
		fEvidenceLevel:          c.EvidenceLevel(),
		fRecommendationStrength: c.RecommendationStrength(),
		fPageNumbers:            strings.Join(pages, ","),
		fOversized:              oversized,
		fOverlapTokens:          strconv.Itoa(c.OverlapTokens()),
		fTokenCount:             strconv.Itoa(c.TokenCount()),
	}
	if len(c.Embedding()) > 0 {
		m[fVector] = db.EncodeVector(c.Embedding())
	}
	// empty TAG values break the index on some server versions
	for _, f := range []string{fEvidenceLevel, fRecommendationStrength, fPageNumbers} {
		if m[f] == "" {
			delete(m, f)
		}
	}
	return m
}

func decodeChunk(m map[string]string) (chunk.Chunk, error) {
	id := m[fID]
	if id == "" {
		return chunk.Chunk{}, fmt.Errorf("chunk hash without id")
	}
	ordinal, err := atoi(m, fOrdinal)
	if err != nil {
		return chunk.Chunk{}, err
	}
	overlap, err := atoi(m, fOverlapTokens)
	if err != nil {
		return chunk.Chunk{}, err
	}
	tokens, err := atoi(m, fTokenCount)
	if err != nil {
		return chunk.Chunk{}, err
	}

	var pages []int
	if s := m[fPageNumbers]; s != "" {
		for _, p := range strings.Split(s, ",") {
			n, err := strconv.Atoi(p)
			if err != nil {
				return chunk.Chunk{}, fmt.Errorf("page_numbers %q: %w", s, err)
			}
			pages = append(pages, n)
		}
	}

	var vec []float32
	if s, ok := m[fVector]; ok && s != "" {
		if vec, err = db.DecodeVector(s); err != nil {
			return chunk.Chunk{}, fmt.Errorf("chunk %s: %w", id, err)
		}
	}

	return chunk.Reconstruct(id, chunk.Params{
		DocumentID:             m[fDocumentID],
		DocumentType:           document.Type(m[fDocumentType]),
		Ordinal:                ordinal,
		Content:                m[fContent],
		SectionPath:            chunk.SplitPath(m[fSectionPath]),
		SemanticType:           chunk.SemanticType(m[fSemanticType]),
		EvidenceLevel:          m[fEvidenceLevel],
		RecommendationStrength: m[fRecommendationStrength],
		PageNumbers:            pages,
		Oversized:              m[fOversized] == "1",
		OverlapTokens:          overlap,
	}, tokens, vec), nil
}

func atoi(m map[string]string, field string) (int, error) {
	s, ok := m[field]
	if !ok || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return n, nil
}

func encodeDocument(d document.Document) map[string]string {
	return map[string]string{
		fID:     d.ID(),
		fTitle:  d.Title(),
		fSource: d.Source(),
		fType:   string(d.Type()),
	}
}

const (
	dirOut = "out"
	dirIn  = "in"
)

func edgeField(dir string, rel graph.Relation, peer string) string {
	return dir + "|" + string(rel) + "|" + peer
}

// edgeFields groups edges by the chunk whose edges hash they belong to.
// Incoming NEXT_CHUNK edges are mirrored onto the target.
func edgeFields(edges []graph.Edge) map[string]map[string]string {
	out := make(map[string]map[string]string)
	put := func(owner, field, value string) {
		if out[owner] == nil {
			out[owner] = make(map[string]string)
		}
		out[owner][field] = value
	}
	for _, e := range edges {
		v := strconv.Itoa(e.OverlapTokens)
		put(e.From, edgeField(dirOut, e.Type, e.To), v)
		if e.Type == graph.NextChunk {
			put(e.To, edgeField(dirIn, e.Type, e.From), v)
		}
	}
	return out
}

func decodeNeighbors(m map[string]string) []graph.Neighbor {
	out := make([]graph.Neighbor, 0, len(m))
	for field := range m {
		parts := strings.SplitN(field, "|", 3)
		if len(parts) != 3 {
			continue
		}
		rel, ok := graph.ParseRelation(parts[1])
		if !ok {
			continue
		}
		out = append(out, graph.Neighbor{ChunkID: parts[2], Relation: rel, Incoming: parts[0] == dirIn})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relation != out[j].Relation {
			return out[i].Relation < out[j].Relation
		}
		if out[i].Incoming != out[j].Incoming {
			return !out[i].Incoming
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
