package structure

import (
	"regexp"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
)

// maxHitsPerKeyword caps how much a single repeated keyword can contribute.
const maxHitsPerKeyword = 3

// TypeKeywords is one row of the detection table.
type TypeKeywords struct {
	Type     document.Type
	Patterns []*regexp.Regexp
}

// DefaultTypeKeywords returns the built-in detection table.
func DefaultTypeKeywords() []TypeKeywords {
	return []TypeKeywords{
		{Type: document.Guideline, Patterns: compile(
			`(?i)\brecommendations?\b`,
			`(?i)\bevidence\s+level\b|\blevel\s+of\s+evidence\b`,
			`(?i)\b(strong|conditional|weak)\s+recommendation\b|\bstrength\s+of\s+recommendation\b`,
			`(?i)\bgrade\s+[A-D]\b`,
			`(?i)\bguidelines?\b`,
		)},
		{Type: document.Calculator, Patterns: compile(
			`(?i)\bformula\b`,
			`(?i)\binput\s+variables?\b`,
			`(?i)\bcalculator\b`,
			`(?i)\bscore\s+interpretation\b|\binterpretation\s+of\s+(the\s+)?score\b`,
			`(?i)\bcalculation\b|\bequation\b`,
		)},
		{Type: document.Literature, Patterns: compile(
			`(?i)\babstract\b`,
			`(?i)\bmethods\b`,
			`(?i)\bresults\b`,
			`(?i)\bdiscussion\b`,
			`(?i)\bconclusions?\b`,
			`(?i)\bet\s+al\.`,
			`(?i)\bdoi\b`,
		)},
	}
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// TypeScorer picks the document type with the highest keyword score.
type TypeScorer struct {
	table []TypeKeywords
}

// NewTypeScorer creates a scorer over table.
func NewTypeScorer(table []TypeKeywords) *TypeScorer {
	return &TypeScorer{table: table}
}

// Scores returns the capped keyword score per type.
func (s *TypeScorer) Scores(text string) map[document.Type]int {
	out := make(map[document.Type]int, len(s.table))
	for _, row := range s.table {
		score := 0
		for _, re := range row.Patterns {
			n := len(re.FindAllStringIndex(text, maxHitsPerKeyword))
			score += n
		}
		out[row.Type] += score
	}
	return out
}

// Detect returns the unique top-scoring type. Ties, including no hits at all,
// resolve to guideline, the most general parsing strategy.
func (s *TypeScorer) Detect(text string) document.Type {
	scores := s.Scores(text)
	best, bestScore, tied := document.Guideline, -1, false
	for _, row := range s.table {
		sc := scores[row.Type]
		switch {
		case sc > bestScore:
			best, bestScore, tied = row.Type, sc, false
		case sc == bestScore:
			tied = true
		}
	}
	if tied || bestScore <= 0 {
		return document.Guideline
	}
	return best
}
