// Package structure detects a document's type and extracts its section tree.
package structure

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
)

// MaxTitleRunes bounds numbered header titles; longer numbered lines are prose.
const MaxTitleRunes = 100

var (
	markdownHeader = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.+?)\s*#*\s*$`)
	numberedHeader = regexp.MustCompile(`^\s{0,3}(\d+(?:\.\d+)*)\.?\s+(\S.*?)\s*$`)
)

// Section is one node of the section tree, flattened in document order.
type Section struct {
	Level       int
	Title       string
	Path        []string // ancestor titles including this one
	Content     string
	StartOffset int // byte offset of the header line (0 for the preamble)
	EndOffset   int // byte offset where the next section starts
}

// Result is the parsed document.
type Result struct {
	Type     document.Type
	Detected bool // Type came from keyword scoring rather than the caller
	Sections []Section
}

// Parser is stateless and safe for concurrent use.
type Parser struct {
	scorer *TypeScorer
}

// NewParser returns a parser using the default type keyword table.
func NewParser() *Parser {
	return &Parser{scorer: NewTypeScorer(DefaultTypeKeywords())}
}

// NewParserWithScorer returns a parser with a custom type scorer.
func NewParserWithScorer(s *TypeScorer) *Parser {
	return &Parser{scorer: s}
}

// DetectType scores text against the keyword table.
func (p *Parser) DetectType(text string) document.Type {
	return p.scorer.Detect(text)
}

// Parse extracts sections. declared wins over detection unless it is Unknown.
// Text without headers yields one section spanning the whole document.
func (p *Parser) Parse(text string, declared document.Type) Result {
	res := Result{Type: declared}
	if declared == document.Unknown {
		res.Type = p.DetectType(text)
		res.Detected = true
	}
	res.Sections = p.sections(text)
	return res
}

type line struct {
	text   string
	offset int
}

type header struct {
	level int
	title string
}

func splitLines(text string) []line {
	var out []line
	off := 0
	for off <= len(text) {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			out = append(out, line{text: strings.TrimRight(text[off:], "\r"), offset: off})
			break
		}
		out = append(out, line{text: strings.TrimRight(text[off:off+i], "\r"), offset: off})
		off += i + 1
	}
	return out
}

func (p *Parser) sections(text string) []Section {
	lines := splitLines(text)
	headers := detectHeaders(lines)

	if len(headers) == 0 {
		return []Section{{
			Level:       0,
			Content:     strings.TrimSpace(text),
			StartOffset: 0,
			EndOffset:   len(text),
		}}
	}

	type open struct {
		level int
		title string
	}
	var (
		out     []Section
		stack   []open
		cur     *Section
		content []string
	)
	flush := func(end int) {
		if cur == nil {
			return
		}
		cur.Content = strings.TrimSpace(strings.Join(content, "\n"))
		cur.EndOffset = end
		// preamble sections without text carry nothing
		if cur.Level > 0 || cur.Content != "" {
			out = append(out, *cur)
		}
	}

	cur = &Section{Level: 0, StartOffset: 0}
	for i, ln := range lines {
		h, ok := headers[i]
		if !ok {
			content = append(content, ln.text)
			continue
		}
		flush(ln.offset)
		content = content[:0]

		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, open{level: h.level, title: h.title})
		path := make([]string, len(stack))
		for j, o := range stack {
			path[j] = o.title
		}
		cur = &Section{Level: h.level, Title: h.title, Path: path, StartOffset: ln.offset}
	}
	flush(len(text))
	return out
}

// detectHeaders returns header lines keyed by line index. Numbered lines that sit in a
// run of same-depth numbered lines are list items, not headers.
func detectHeaders(lines []line) map[int]header {
	out := make(map[int]header)
	numbered := make(map[int]header)

	for i, ln := range lines {
		if m := markdownHeader.FindStringSubmatch(ln.text); m != nil {
			out[i] = header{level: len(m[1]), title: strings.TrimSpace(m[2])}
			continue
		}
		if h, ok := numberedCandidate(ln.text); ok {
			numbered[i] = h
		}
	}

	for i, h := range numbered {
		if prev, ok := numbered[i-1]; ok && prev.level == h.level {
			continue
		}
		if next, ok := numbered[i+1]; ok && next.level == h.level {
			continue
		}
		out[i] = h
	}
	return out
}

func numberedCandidate(s string) (header, bool) {
	m := numberedHeader.FindStringSubmatch(s)
	if m == nil {
		return header{}, false
	}
	title := m[2]
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		return header{}, false
	}
	if strings.HasSuffix(title, ".") || strings.HasSuffix(title, ";") || strings.HasSuffix(title, ",") {
		return header{}, false
	}
	first, _ := utf8.DecodeRuneInString(title)
	if !unicode.IsUpper(first) {
		return header{}, false
	}
	level := strings.Count(m[1], ".") + 1
	return header{level: level, title: m[1] + " " + title}, true
}
