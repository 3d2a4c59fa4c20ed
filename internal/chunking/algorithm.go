package chunking

import (
	"errors"
	"regexp"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/chunking/semantic"
	"github.com/kailas-cloud/clinrag/internal/chunking/structure"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// ErrNoComponents is returned for calculator documents without recognisable components.
var ErrNoComponents = errors.New("no calculator components detected")

// componentHeaders maps section titles to calculator components. First match wins,
// so "Score interpretation" is an interpretation, not an algorithm.
var componentHeaders = []struct {
	kind chunk.SemanticType
	re   *regexp.Regexp
}{
	{chunk.CalculatorEvidence, regexp.MustCompile(`(?i)\b(evidence|validation|references?|citations?|studies|literature)\b`)},
	{chunk.CalculatorInterpretation, regexp.MustCompile(`(?i)\b(interpretation|interpreting|results?|risk\s+(?:groups?|categor(?:y|ies)|stratification)|score\s+ranges?)\b`)},
	{chunk.CalculatorApplication, regexp.MustCompile(`(?i)\b(application|clinical\s+use|when\s+to\s+use|management|next\s+steps|pearls|pitfalls|advice|limitations)\b`)},
	{chunk.CalculatorInputs, regexp.MustCompile(`(?i)\b(inputs?|variables?|parameters?|measurements?|criteria)\b`)},
	{chunk.CalculatorAlgorithm, regexp.MustCompile(`(?i)\b(formula|algorithm|calculation|equation|scoring|points|computation|dosing)\b`)},
	{chunk.CalculatorPurpose, regexp.MustCompile(`(?i)\b(purpose|overview|about|description|introduction|summary|background)\b`)},
}

// affinityGroups are the components that share a chunk when they fit together.
var affinityGroups = [][]chunk.SemanticType{
	{chunk.CalculatorPurpose, chunk.CalculatorInputs},
	{chunk.CalculatorAlgorithm},
	{chunk.CalculatorInterpretation, chunk.CalculatorApplication},
	{chunk.CalculatorEvidence},
}

// atomicComponents are emitted whole even above MaxTokens; splitting them would
// separate a formula from its variables or a score from its meaning.
var atomicComponents = map[chunk.SemanticType]bool{
	chunk.CalculatorInputs:         true,
	chunk.CalculatorAlgorithm:      true,
	chunk.CalculatorInterpretation: true,
}

type component struct {
	kind  chunk.SemanticType
	parts []string
	paths [][]string
}

func (c *component) add(s structure.Section) {
	if r := renderSection(s); r != "" {
		c.parts = append(c.parts, r)
		c.paths = append(c.paths, s.Path)
	}
}

func (c *component) text() string { return strings.Join(c.parts, "\n\n") }

// Algorithm assembles calculator documentation by component.
type Algorithm struct {
	p packer
}

// NewAlgorithm creates the algorithm-based assembler.
func NewAlgorithm(tok tokenizer.Tokenizer, det *semantic.Detector) *Algorithm {
	return &Algorithm{p: packer{tok: tok, det: det}}
}

// Name implements Assembler.
func (a *Algorithm) Name() string { return "algorithm-based" }

// Assemble implements Assembler. A document that fits in MaxTokens becomes a single
// calculator-complete chunk.
func (a *Algorithm) Assemble(sections []structure.Section, cfg Config) ([]Draft, error) {
	comps := detectComponents(sections)
	if len(comps) == 0 {
		return nil, ErrNoComponents
	}

	var (
		parts []string
		paths [][]string
	)
	for _, s := range sections {
		if r := renderSection(s); r != "" {
			parts = append(parts, r)
			paths = append(paths, s.Path)
		}
	}
	full := strings.Join(parts, "\n\n")
	if tokens := a.p.tok.Count(full); tokens <= cfg.MaxTokens {
		d := a.p.draft(a.p.units(full), commonPrefix(paths))
		d.SemanticType = chunk.CalculatorComplete
		d.Atomic = true
		return []Draft{d}, nil
	}

	var out []Draft
	for _, group := range affinityGroups {
		var members []*component
		for _, kind := range group {
			if c, ok := comps[kind]; ok {
				members = append(members, c)
			}
		}
		if len(members) == 0 {
			continue
		}
		out = append(out, a.group(members, cfg)...)
	}
	return out, nil
}

func (a *Algorithm) group(members []*component, cfg Config) []Draft {
	var (
		texts []string
		paths [][]string
	)
	for _, m := range members {
		texts = append(texts, m.text())
		paths = append(paths, m.paths...)
	}
	if len(members) > 1 {
		if joined := strings.Join(texts, "\n\n"); a.p.tok.Count(joined) <= cfg.capacity() {
			d := a.p.draft(a.p.units(joined), commonPrefix(paths))
			d.SemanticType = members[0].kind
			return []Draft{d}
		}
	}

	var out []Draft
	for _, m := range members {
		out = append(out, a.component(m, cfg)...)
	}
	return out
}

func (a *Algorithm) component(c *component, cfg Config) []Draft {
	text := c.text()
	path := commonPrefix(c.paths)
	units := a.p.units(text)
	tokens := a.p.tok.Count(text)

	if tokens <= cfg.capacity() || atomicComponents[c.kind] {
		d := a.p.draft(units, path)
		d.SemanticType = c.kind
		d.Oversized = tokens > cfg.MaxTokens
		return []Draft{d}
	}
	return retype(a.p.pack(units, cfg, path, false), c.kind)
}

// detectComponents assigns every section to a component by header keyword.
// Unmatched sections attach to the preceding component; sections before the first
// match attach to it.
func detectComponents(sections []structure.Section) map[chunk.SemanticType]*component {
	comps := make(map[chunk.SemanticType]*component)
	var (
		current *component
		pending []structure.Section
	)
	for _, s := range sections {
		if renderSection(s) == "" {
			continue
		}
		kind, ok := matchComponent(s.Title)
		if !ok {
			if current == nil {
				pending = append(pending, s)
			} else {
				current.add(s)
			}
			continue
		}
		c, exists := comps[kind]
		if !exists {
			c = &component{kind: kind}
			comps[kind] = c
		}
		if current == nil {
			for _, p := range pending {
				c.add(p)
			}
			pending = nil
		}
		c.add(s)
		current = c
	}
	return comps
}

func matchComponent(title string) (chunk.SemanticType, bool) {
	if title == "" {
		return "", false
	}
	for _, h := range componentHeaders {
		if h.re.MatchString(title) {
			return h.kind, true
		}
	}
	return "", false
}

// renderSection returns the section title and content as one block of text.
func renderSection(s structure.Section) string {
	title := strings.TrimSpace(s.Title)
	content := strings.TrimSpace(s.Content)
	switch {
	case title == "":
		return content
	case content == "":
		return title
	default:
		return title + "\n\n" + content
	}
}
