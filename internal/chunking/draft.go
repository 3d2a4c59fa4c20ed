package chunking

import (
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
)

// unit is the smallest piece an assembler moves around: a paragraph, or a sentence
// when a paragraph had to be broken up.
type unit struct {
	text     string
	tokens   int
	typ      chunk.SemanticType
	level    string
	strength string
	sentence bool
}

// Draft is an assembled chunk before it gets an id and ordinal.
type Draft struct {
	Content                string
	SectionPath            []string
	SemanticType           chunk.SemanticType
	EvidenceLevel          string
	RecommendationStrength string
	Tokens                 int
	Oversized              bool
	// Atomic drafts neither receive nor donate overlap.
	Atomic                 bool
	OverlapTokens          int
	// LeadingOverlapTokens is the part of OverlapTokens taken from the previous draft.
	LeadingOverlapTokens   int

	units []unit
}

func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			if u.sentence && units[i-1].sentence {
				b.WriteByte(' ')
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

// classify derives the chunk type from its units: recommendation beats evidence beats
// general. Level and strength come from the first graded unit carrying them.
func classify(units []unit) (typ chunk.SemanticType, level, strength string) {
	typ = chunk.General
	for _, u := range units {
		switch u.typ {
		case chunk.Recommendation:
			typ = chunk.Recommendation
		case chunk.Evidence:
			if typ != chunk.Recommendation {
				typ = chunk.Evidence
			}
		default:
			continue
		}
		if level == "" {
			level = u.level
		}
		if strength == "" {
			strength = u.strength
		}
	}
	return typ, level, strength
}

func retype(drafts []Draft, typ chunk.SemanticType) []Draft {
	for i := range drafts {
		drafts[i].SemanticType = typ
	}
	return drafts
}

// commonPrefix returns the longest section path shared by all paths.
func commonPrefix(paths [][]string) []string {
	if len(paths) == 0 {
		return nil
	}
	prefix := paths[0]
	for _, p := range paths[1:] {
		n := 0
		for n < len(prefix) && n < len(p) && prefix[n] == p[n] {
			n++
		}
		prefix = prefix[:n]
	}
	if len(prefix) == 0 {
		return nil
	}
	return append([]string(nil), prefix...)
}
