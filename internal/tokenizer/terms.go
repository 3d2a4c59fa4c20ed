package tokenizer

import (
	"strings"
	"unicode"
)

// stopwords are dropped from index and query terms.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "has": true, "have": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "were": true, "which": true, "with": true,
	"who": true, "what": true, "when": true, "than": true, "then": true, "these": true,
	"those": true, "there": true, "their": true, "into": true, "not": true, "no": true,
	"but": true, "if": true, "all": true, "any": true, "can": true, "may": true, "should": true,
	"must": true, "will": true, "been": true, "being": true, "also": true, "such": true,
}

// Terms returns the lower-cased content words of text in order, with stopwords
// removed and plural "s" stripped. Keyword scoring, feature hashing and lexical
// similarity all use it so they agree on what a term is.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

// TermSet returns the distinct terms of text.
func TermSet(text string) map[string]struct{} {
	terms := Terms(text)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b| over the term sets of two texts.
func Jaccard(a, b string) float64 {
	sa, sb := TermSet(a), TermSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

func stem(w string) string {
	if len(w) > 4 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") &&
		!strings.HasSuffix(w, "is") {
		return w[:len(w)-1]
	}
	return w
}
