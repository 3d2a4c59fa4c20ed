package result

import (
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
)

// Source records which stage produced or last touched a hit.
type Source string

// Source constants.
const (
	SourceVector    Source = "vector"
	SourceKeyword   Source = "keyword"
	SourceHybrid    Source = "hybrid"
	SourceExpansion Source = "expansion"
)

// Hit is a ranked chunk.
type Hit struct {
	chunk  chunk.Chunk
	score  float64
	source Source
}

// New creates a ranked hit.
func New(c chunk.Chunk, score float64, source Source) Hit {
	return Hit{chunk: c, score: score, source: source}
}

// Chunk returns the matched chunk.
func (h Hit) Chunk() chunk.Chunk { return h.chunk }

// ID returns the chunk identifier.
func (h Hit) ID() string { return h.chunk.ID() }

// Score returns the relevance score.
func (h Hit) Score() float64 { return h.score }

// Source returns the stage that produced the hit.
func (h Hit) Source() Source { return h.source }

// WithScore returns a copy with score replaced.
func (h Hit) WithScore(score float64) Hit {
	h.score = score
	return h
}

// WithSource returns a copy with source replaced.
func (h Hit) WithSource(s Source) Hit {
	h.source = s
	return h
}

// Record is the flattened form handed to the note-drafting collaborator.
type Record struct {
	ChunkID       string   `json:"chunk_id"`
	Content       string   `json:"content"`
	DocumentID    string   `json:"document_id"`
	SectionPath   []string `json:"section_path"`
	SemanticType  string   `json:"semantic_type"`
	EvidenceLevel string   `json:"evidence_level,omitempty"`
	Score         float64  `json:"score"`
}

// ToRecord flattens the hit.
func (h Hit) ToRecord() Record {
	return Record{
		ChunkID:       h.chunk.ID(),
		Content:       h.chunk.Content(),
		DocumentID:    h.chunk.DocumentID(),
		SectionPath:   h.chunk.SectionPath(),
		SemanticType:  string(h.chunk.SemanticType()),
		EvidenceLevel: h.chunk.EvidenceLevel(),
		Score:         h.score,
	}
}

// Records flattens hits in order.
func Records(hits []Hit) []Record {
	out := make([]Record, len(hits))
	for i, h := range hits {
		out[i] = h.ToRecord()
	}
	return out
}
