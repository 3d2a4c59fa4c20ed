package semantic

import (
	"regexp"
	"strings"
)

// Pattern extracts a value from a paragraph. Group selects the capture group holding
// the value (0 = whole match); Normalize canonicalizes it.
type Pattern struct {
	Name      string
	Re        *regexp.Regexp
	Group     int
	Normalize func(string) string
}

// Find returns the normalized value of the first match.
func (p Pattern) Find(text string) (string, bool) {
	m := p.Re.FindStringSubmatch(text)
	if m == nil || p.Group >= len(m) {
		return "", false
	}
	v := m[p.Group]
	if p.Normalize != nil {
		v = p.Normalize(v)
	}
	return v, true
}

// PatternTable holds the classification rules as data. New markers are added by
// appending rows, not by editing the detector.
type PatternTable struct {
	Recommendation []Pattern
	EvidenceLevel  []Pattern
	Strength       []Pattern
}

// Merge returns t with other's rows appended.
func (t PatternTable) Merge(other PatternTable) PatternTable {
	return PatternTable{
		Recommendation: append(append([]Pattern(nil), t.Recommendation...), other.Recommendation...),
		EvidenceLevel:  append(append([]Pattern(nil), t.EvidenceLevel...), other.EvidenceLevel...),
		Strength:       append(append([]Pattern(nil), t.Strength...), other.Strength...),
	}
}

// grade values are matched case-sensitively so "grade a patient" is not a grade.
const gradeValue = `([A-D]|IV|I{1,3})\b`

// DefaultPatterns returns the built-in marker table.
func DefaultPatterns() PatternTable {
	return PatternTable{
		Recommendation: []Pattern{
			{Name: "numbered", Re: regexp.MustCompile(`(?i)\brecommendation\s+\d+(?:\.\d+)*`)},
			{Name: "modal", Re: regexp.MustCompile(`(?i)\b(?:should|must)\b`)},
			{Name: "recommend", Re: regexp.MustCompile(`(?i)\brecommend(?:s|ed|ation|ations)?\b`)},
			{Name: "suggest", Re: regexp.MustCompile(`(?i)\bwe\s+suggest\b`)},
		},
		EvidenceLevel: []Pattern{
			{Name: "evidence-level", Re: regexp.MustCompile(`(?i:\bevidence\s+level)\s*[:=]?\s*` + gradeValue), Group: 1, Normalize: strings.ToUpper},
			{Name: "level-of-evidence", Re: regexp.MustCompile(`(?i:\blevel\s+of\s+evidence)\s*[:=]?\s*` + gradeValue), Group: 1, Normalize: strings.ToUpper},
			{Name: "loe", Re: regexp.MustCompile(`\b(?:LOE|LoE)\s*[:=]?\s*` + gradeValue), Group: 1, Normalize: strings.ToUpper},
			{Name: "grade", Re: regexp.MustCompile(`(?i:\bgrade)\s*[:=]?\s*([A-D])\b`), Group: 1, Normalize: strings.ToUpper},
			{Name: "evidence-level-word", Re: regexp.MustCompile(`(?i)\b(?:evidence\s+level|level\s+of\s+evidence|quality\s+of\s+evidence|certainty\s+of\s+evidence)\s*[:=]?\s*(low|moderate|high)\b`), Group: 1, Normalize: titleCase},
			{Name: "quality-word", Re: regexp.MustCompile(`(?i)\b(low|moderate|high)[- ](?:quality|certainty)\b`), Group: 1, Normalize: titleCase},
		},
		Strength: []Pattern{
			{Name: "strength-recommendation", Re: regexp.MustCompile(`(?i)\b(strong|conditional|weak)\s+recommendation\b`), Group: 1, Normalize: strings.ToLower},
			{Name: "recommendation-strength", Re: regexp.MustCompile(`(?i)\b(?:recommendation\s+)?strength\s*[:=]?\s*(strong|conditional|weak)\b`), Group: 1, Normalize: strings.ToLower},
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
