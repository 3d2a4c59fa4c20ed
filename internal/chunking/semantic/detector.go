// Package semantic splits section text into paragraph units and classifies them as
// recommendations, evidence statements or general text.
package semantic

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\r?\n`)

// Unit is one classified paragraph.
type Unit struct {
	Text                   string
	Type                   chunk.SemanticType
	EvidenceLevel          string
	RecommendationStrength string
}

// IsGraded reports whether the unit carries a recommendation or evidence marker.
func (u Unit) IsGraded() bool {
	return u.Type == chunk.Recommendation || u.Type == chunk.Evidence
}

// Detector classifies paragraphs. It is stateless and safe for concurrent use.
type Detector struct {
	table PatternTable
}

// Option configures a Detector.
type Option func(*Detector)

// WithPatterns replaces the pattern table.
func WithPatterns(t PatternTable) Option {
	return func(d *Detector) { d.table = t }
}

// WithExtraPatterns appends rows to the pattern table.
func WithExtraPatterns(t PatternTable) Option {
	return func(d *Detector) { d.table = d.table.Merge(t) }
}

// NewDetector returns a detector over DefaultPatterns.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{table: DefaultPatterns()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SplitParagraphs splits on blank lines and drops empty paragraphs.
func SplitParagraphs(content string) []string {
	parts := paragraphBreak.Split(content, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Detect splits content into paragraphs and classifies each. It never fails;
// anything it cannot classify is general.
func (d *Detector) Detect(content string) []Unit {
	paras := SplitParagraphs(content)
	units := make([]Unit, len(paras))
	for i, p := range paras {
		units[i] = d.Classify(p)
	}
	return units
}

// Classify labels one paragraph. A recommendation marker wins; an evidence level
// alone makes an evidence unit; everything else is general.
func (d *Detector) Classify(paragraph string) Unit {
	u := Unit{Text: paragraph, Type: chunk.General}

	level, hasLevel := firstMatch(d.table.EvidenceLevel, paragraph)

	if _, ok := firstMatch(d.table.Recommendation, paragraph); ok {
		u.Type = chunk.Recommendation
		u.EvidenceLevel = level
		u.RecommendationStrength, _ = firstMatch(d.table.Strength, paragraph)
		return u
	}
	if hasLevel {
		u.Type = chunk.Evidence
		u.EvidenceLevel = level
	}
	return u
}

func firstMatch(patterns []Pattern, text string) (string, bool) {
	for _, p := range patterns {
		if v, ok := p.Find(text); ok {
			return v, true
		}
	}
	return "", false
}
