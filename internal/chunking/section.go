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

// ErrNoArticleSections is returned when no top-level section looks like part of an article.
var ErrNoArticleSections = errors.New("no article sections detected")

var articleHeaders = []struct {
	kind chunk.SemanticType
	re   *regexp.Regexp
}{
	{chunk.ArticleAbstract, regexp.MustCompile(`(?i)\b(abstract|synopsis)\b`)},
	{chunk.ArticleConclusions, regexp.MustCompile(`(?i)\b(conclusions?|concluding\s+remarks)\b`)},
	{chunk.ArticleReferences, regexp.MustCompile(`(?i)\b(references|bibliography|works\s+cited)\b`)},
	{chunk.ArticleMethods, regexp.MustCompile(`(?i)\b(methods?|methodology|materials|study\s+design)\b`)},
	{chunk.ArticleResults, regexp.MustCompile(`(?i)\b(results|findings|outcomes)\b`)},
	{chunk.ArticleDiscussion, regexp.MustCompile(`(?i)\b(discussion|limitations)\b`)},
	{chunk.ArticleIntroduction, regexp.MustCompile(`(?i)\b(introduction|background|rationale)\b`)},
}

// block is a top-level section with its descendants.
type block struct {
	kind chunk.SemanticType
	head structure.Section
	subs []structure.Section
}

// SectionBased assembles literature by article section.
type SectionBased struct {
	p packer
}

// NewSectionBased creates the section-based assembler.
func NewSectionBased(tok tokenizer.Tokenizer, det *semantic.Detector) *SectionBased {
	return &SectionBased{p: packer{tok: tok, det: det}}
}

// Name implements Assembler.
func (a *SectionBased) Name() string { return "section-based" }

// Assemble implements Assembler. Abstract and conclusions are single atomic chunks;
// other sections are chunked per subsection, or by paragraph when they have none.
func (a *SectionBased) Assemble(sections []structure.Section, cfg Config) ([]Draft, error) {
	blocks := articleBlocks(sections)

	recognised := false
	for _, b := range blocks {
		if b.kind != chunk.ArticleBody {
			recognised = true
			break
		}
	}
	if !recognised {
		return nil, ErrNoArticleSections
	}

	var out []Draft
	for _, b := range blocks {
		switch b.kind {
		case chunk.ArticleAbstract, chunk.ArticleConclusions:
			if d, ok := a.atomic(b, cfg); ok {
				out = append(out, d)
			}
		default:
			out = append(out, retype(a.chunkBlock(b, cfg), b.kind)...)
		}
	}
	return out, nil
}

func (a *SectionBased) atomic(b block, cfg Config) (Draft, bool) {
	parts := make([]string, 0, len(b.subs)+1)
	if c := strings.TrimSpace(b.head.Content); c != "" {
		parts = append(parts, c)
	}
	for _, s := range b.subs {
		if r := renderSection(s); r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		return Draft{}, false
	}
	d := a.p.draft(a.p.units(strings.Join(parts, "\n\n")), b.head.Path)
	d.SemanticType = b.kind
	d.Atomic = true
	d.Oversized = d.Tokens > cfg.MaxTokens
	return d, true
}

func (a *SectionBased) chunkBlock(b block, cfg Config) []Draft {
	if len(b.subs) == 0 {
		return a.p.pack(a.p.units(b.head.Content), cfg, b.head.Path, false)
	}

	var out []Draft
	if strings.TrimSpace(b.head.Content) != "" {
		out = append(out, a.piece(b.head.Content, b.head.Path, cfg)...)
	}

	// a subsection carries its own descendants
	childLevel := b.subs[0].Level
	for _, s := range b.subs {
		if s.Level < childLevel {
			childLevel = s.Level
		}
	}
	var (
		text []string
		path []string
	)
	emit := func() {
		if len(text) > 0 {
			out = append(out, a.piece(strings.Join(text, "\n\n"), path, cfg)...)
		}
		text, path = nil, nil
	}
	for _, s := range b.subs {
		if s.Level == childLevel {
			emit()
		}
		if path == nil {
			path = s.Path
		}
		if r := renderSection(s); r != "" {
			text = append(text, r)
		}
	}
	emit()
	return out
}

// piece emits text as one draft when it fits, otherwise packs it by paragraph.
func (a *SectionBased) piece(text string, path []string, cfg Config) []Draft {
	units := a.p.units(text)
	if len(units) == 0 {
		return nil
	}
	if a.p.tok.Count(joinUnits(units)) <= cfg.capacity() {
		return []Draft{a.p.draft(units, path)}
	}
	return a.p.pack(units, cfg, path, false)
}

// articleBlocks groups sections under the shallowest level holding a recognised
// article header, so a document title above "Abstract" does not hide the sections.
// Text outside those blocks becomes article-body.
func articleBlocks(sections []structure.Section) []block {
	top := 0
	for _, s := range sections {
		if s.Level > 0 && matchArticle(s.Title) != chunk.ArticleBody && (top == 0 || s.Level < top) {
			top = s.Level
		}
	}

	var (
		blocks []block
		cur    *block
	)
	for _, s := range sections {
		switch {
		case top > 0 && s.Level == top:
			blocks = append(blocks, block{kind: matchArticle(s.Title), head: s})
			cur = &blocks[len(blocks)-1]
		case cur == nil || s.Level < top || top == 0:
			blocks = append(blocks, block{kind: chunk.ArticleBody, head: s})
			cur = &blocks[len(blocks)-1]
		default:
			cur.subs = append(cur.subs, s)
		}
	}
	return blocks
}

func matchArticle(title string) chunk.SemanticType {
	for _, h := range articleHeaders {
		if h.re.MatchString(title) {
			return h.kind
		}
	}
	return chunk.ArticleBody
}
