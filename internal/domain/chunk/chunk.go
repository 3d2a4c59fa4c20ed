// Package chunk holds the atomic retrievable unit produced by the assemblers.
package chunk

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
)

// SemanticType is an open enumeration; assemblers may introduce new values.
type SemanticType string

// Guideline unit types.
const (
	Recommendation SemanticType = "recommendation"
	Evidence       SemanticType = "evidence"
	General        SemanticType = "general"
)

// Calculator component types.
const (
	CalculatorComplete       SemanticType = "calculator-complete"
	CalculatorPurpose        SemanticType = "calculator-purpose"
	CalculatorInputs         SemanticType = "calculator-inputs"
	CalculatorAlgorithm      SemanticType = "calculator-algorithm"
	CalculatorInterpretation SemanticType = "calculator-interpretation"
	CalculatorApplication    SemanticType = "calculator-application"
	CalculatorEvidence       SemanticType = "calculator-evidence"
)

// Article section types.
const (
	ArticleAbstract     SemanticType = "article-abstract"
	ArticleIntroduction SemanticType = "article-introduction"
	ArticleMethods      SemanticType = "article-methods"
	ArticleResults      SemanticType = "article-results"
	ArticleDiscussion   SemanticType = "article-discussion"
	ArticleConclusions  SemanticType = "article-conclusions"
	ArticleReferences   SemanticType = "article-references"
	ArticleBody         SemanticType = "article-body"
)

// idNamespace scopes chunk UUIDs so they never collide with ids minted elsewhere.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://clinrag/chunk"))

// NewID returns a deterministic id for the chunk at ordinal in documentID.
// Re-chunking identical input yields identical ids.
func NewID(documentID string, ordinal int, content string) string {
	name := documentID + "\x00" + strconv.Itoa(ordinal) + "\x00" + content
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Counter counts tokens; satisfied by tokenizer.Tokenizer.
type Counter interface {
	Count(text string) int
}

// Params holds the assembler supplied fields of a chunk.
type Params struct {
	DocumentID             string
	DocumentType           document.Type
	Ordinal                int
	Content                string
	SectionPath            []string
	SemanticType           SemanticType
	EvidenceLevel          string
	RecommendationStrength string
	PageNumbers            []int
	Oversized              bool
	OverlapTokens          int
	// LeadingOverlapTokens is the part of OverlapTokens copied from the preceding chunk.
	LeadingOverlapTokens   int
}

// Chunk is the atomic retrievable unit (immutable value object).
type Chunk struct {
	id                     string
	documentID             string
	documentType           document.Type
	ordinal                int
	content                string
	tokenCount             int
	charCount              int
	sectionPath            []string
	semanticType           SemanticType
	evidenceLevel          string
	recommendationStrength string
	pageNumbers            []int
	oversized              bool
	overlapTokens          int
	leadingOverlap         int
	embedding              []float32
}

// New creates a chunk, deriving id, token and char counts from content.
func New(p Params, counter Counter) Chunk {
	st := p.SemanticType
	if st == "" {
		st = General
	}
	return Chunk{
		id:                     NewID(p.DocumentID, p.Ordinal, p.Content),
		documentID:             p.DocumentID,
		documentType:           p.DocumentType,
		ordinal:                p.Ordinal,
		content:                p.Content,
		tokenCount:             counter.Count(p.Content),
		charCount:              utf8.RuneCountInString(p.Content),
		sectionPath:            cloneStrings(p.SectionPath),
		semanticType:           st,
		evidenceLevel:          p.EvidenceLevel,
		recommendationStrength: p.RecommendationStrength,
		pageNumbers:            cloneInts(p.PageNumbers),
		oversized:              p.Oversized,
		overlapTokens:          p.OverlapTokens,
		leadingOverlap:         min(max(p.LeadingOverlapTokens, 0), p.OverlapTokens),
	}
}

// Reconstruct creates a Chunk without deriving anything (storage hydration).
func Reconstruct(id string, p Params, tokenCount int, embedding []float32) Chunk {
	return Chunk{
		id:                     id,
		documentID:             p.DocumentID,
		documentType:           p.DocumentType,
		ordinal:                p.Ordinal,
		content:                p.Content,
		tokenCount:             tokenCount,
		charCount:              utf8.RuneCountInString(p.Content),
		sectionPath:            p.SectionPath,
		semanticType:           p.SemanticType,
		evidenceLevel:          p.EvidenceLevel,
		recommendationStrength: p.RecommendationStrength,
		pageNumbers:            p.PageNumbers,
		oversized:              p.Oversized,
		overlapTokens:          p.OverlapTokens,
		leadingOverlap:         min(max(p.LeadingOverlapTokens, 0), p.OverlapTokens),
		embedding:              embedding,
	}
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// DocumentID returns the owning document id.
func (c Chunk) DocumentID() string { return c.documentID }

// DocumentType returns the owning document type.
func (c Chunk) DocumentType() document.Type { return c.documentType }

// Ordinal returns the position in document order.
func (c Chunk) Ordinal() int { return c.ordinal }

// Content returns the chunk text.
func (c Chunk) Content() string { return c.content }

// TokenCount returns the token count of Content.
func (c Chunk) TokenCount() int { return c.tokenCount }

// CharCount returns the rune count of Content.
func (c Chunk) CharCount() int { return c.charCount }

// SectionPath returns ancestor section titles from the document root.
func (c Chunk) SectionPath() []string { return c.sectionPath }

// SemanticType returns the chunk classification.
func (c Chunk) SemanticType() SemanticType { return c.semanticType }

// EvidenceLevel returns the evidence grade, empty when absent.
func (c Chunk) EvidenceLevel() string { return c.evidenceLevel }

// RecommendationStrength returns strong/conditional/weak, empty when absent.
func (c Chunk) RecommendationStrength() string { return c.recommendationStrength }

// PageNumbers returns the source pages, if known.
func (c Chunk) PageNumbers() []int { return c.pageNumbers }

// Oversized reports that a single unit exceeded the assembler's max bound.
func (c Chunk) Oversized() bool { return c.oversized }

// OverlapTokens returns how many tokens were injected from neighbours.
func (c Chunk) OverlapTokens() int { return c.overlapTokens }

// LeadingOverlapTokens returns the overlap copied from the preceding chunk.
func (c Chunk) LeadingOverlapTokens() int { return c.leadingOverlap }

// TrailingOverlapTokens returns the overlap copied from the following chunk.
func (c Chunk) TrailingOverlapTokens() int { return c.overlapTokens - c.leadingOverlap }

// Embedding returns the vector, nil before embedding.
func (c Chunk) Embedding() []float32 { return c.embedding }

// WithEmbedding returns a copy carrying v.
func (c Chunk) WithEmbedding(v []float32) Chunk {
	c.embedding = v
	return c
}

// Params returns the assembler supplied fields, for re-serialization.
func (c Chunk) Params() Params {
	return Params{
		DocumentID:             c.documentID,
		DocumentType:           c.documentType,
		Ordinal:                c.ordinal,
		Content:                c.content,
		SectionPath:            c.sectionPath,
		SemanticType:           c.semanticType,
		EvidenceLevel:          c.evidenceLevel,
		RecommendationStrength: c.recommendationStrength,
		PageNumbers:            c.pageNumbers,
		Oversized:              c.oversized,
		OverlapTokens:          c.overlapTokens,
		LeadingOverlapTokens:   c.leadingOverlap,
	}
}

// PathString joins the section path for display and indexing.
func (c Chunk) PathString() string { return JoinPath(c.sectionPath) }

// JoinPath joins section titles with " > ".
func JoinPath(path []string) string { return strings.Join(path, " > ") }

// SplitPath is the inverse of JoinPath.
func SplitPath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, " > ")
}

// HasPrefix reports whether prefix is a proper prefix of path.
func HasPrefix(path, prefix []string) bool {
	if len(prefix) >= len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append([]int(nil), s...)
}

// Record is the JSON view of a chunk used by previews.
type Record struct {
	ChunkID                string   `json:"chunk_id"`
	Ordinal                int      `json:"ordinal"`
	Content                string   `json:"content"`
	TokenCount             int      `json:"token_count"`
	SectionPath            []string `json:"section_path"`
	SemanticType           string   `json:"semantic_type"`
	EvidenceLevel          string   `json:"evidence_level,omitempty"`
	RecommendationStrength string   `json:"recommendation_strength,omitempty"`
	Oversized              bool     `json:"oversized,omitempty"`
	OverlapTokens          int      `json:"overlap_tokens,omitempty"`
}

// ToRecord flattens c.
func (c Chunk) ToRecord() Record {
	return Record{
		ChunkID:                c.id,
		Ordinal:                c.ordinal,
		Content:                c.content,
		TokenCount:             c.tokenCount,
		SectionPath:            c.sectionPath,
		SemanticType:           string(c.semanticType),
		EvidenceLevel:          c.evidenceLevel,
		RecommendationStrength: c.recommendationStrength,
		Oversized:              c.oversized,
		OverlapTokens:          c.overlapTokens,
	}
}

// Records flattens chunks in order.
func Records(chunks []Chunk) []Record {
	out := make([]Record, len(chunks))
	for i, c := range chunks {
		out[i] = c.ToRecord()
	}
	return out
}
