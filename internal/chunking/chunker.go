package chunking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/chunking/semantic"
	"github.com/kailas-cloud/clinrag/internal/chunking/structure"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/logger"
	"github.com/kailas-cloud/clinrag/internal/metrics"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// Result is the outcome of chunking one document.
type Result struct {
	Type      document.Type
	Detected  bool
	Assembler string
	Chunks    []chunk.Chunk
	Warnings  []string
	FellBack  bool
}

// Chunker parses, assembles and finalizes chunks for a document.
type Chunker struct {
	parser  *structure.Parser
	det     *semantic.Detector
	tok     tokenizer.Tokenizer
	configs Configs
	logger  *zap.Logger
}

// New creates a chunker with the default parser and detector.
func New(tok tokenizer.Tokenizer, configs Configs, logger *zap.Logger) *Chunker {
	return &Chunker{
		parser:  structure.NewParser(),
		det:     semantic.NewDetector(),
		tok:     tok,
		configs: configs,
		logger:  logger,
	}
}

// WithDetector replaces the semantic unit detector.
func (c *Chunker) WithDetector(det *semantic.Detector) *Chunker {
	c.det = det
	return c
}

// WithParser replaces the structure parser.
func (c *Chunker) WithParser(p *structure.Parser) *Chunker {
	c.parser = p
	return c
}

// Tokenizer returns the tokenizer chunks are measured with.
func (c *Chunker) Tokenizer() tokenizer.Tokenizer { return c.tok }

// Chunk never fails: an assembler error, or no output for non-empty text, re-chunks
// the whole document as one section with the hierarchical-semantic assembler.
func (c *Chunker) Chunk(ctx context.Context, doc document.Document, text string) Result {
	log := logger.FromContextOr(ctx, c.logger).With(zap.String("document_id", doc.ID()))

	parsed := c.parser.Parse(text, doc.Type())
	cfg := c.configs.For(parsed.Type)
	asm := For(parsed.Type, c.tok, c.det)

	res := Result{Type: parsed.Type, Detected: parsed.Detected, Assembler: asm.Name()}

	drafts, err := asm.Assemble(parsed.Sections, cfg)
	if err != nil || (len(drafts) == 0 && strings.TrimSpace(text) != "") {
		reason := "empty result"
		if err != nil {
			reason = err.Error()
		}
		log.Warn("Assembler fell back to hierarchical-semantic",
			zap.String("assembler", asm.Name()),
			zap.String("document_type", string(parsed.Type)),
			zap.String("reason", reason),
		)
		metrics.ChunkingFallbacksTotal.WithLabelValues(string(parsed.Type), asm.Name()).Inc()

		fallback := NewHierarchical(c.tok, c.det)
		whole := structure.Section{Content: text, EndOffset: len(text)}
		drafts, _ = fallback.Assemble([]structure.Section{whole}, cfg)
		res.FellBack = true
		res.Assembler = fallback.Name()
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s assembler fell back: %s", asm.Name(), reason))
	}

	drafts = applyOverlap(drafts, cfg, c.tok)

	res.Chunks = make([]chunk.Chunk, 0, len(drafts))
	for i, d := range drafts {
		if d.Oversized {
			log.Warn("Oversized chunk",
				zap.Int("ordinal", i),
				zap.Int("tokens", d.Tokens),
				zap.Int("max_tokens", cfg.MaxTokens),
				zap.String("semantic_type", string(d.SemanticType)),
			)
			metrics.ChunksOversizedTotal.WithLabelValues(string(parsed.Type)).Inc()
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("chunk %d: %d tokens exceeds max %d", i, d.Tokens, cfg.MaxTokens))
		}
		ch := chunk.New(chunk.Params{
			DocumentID:             doc.ID(),
			DocumentType:           parsed.Type,
			Ordinal:                i,
			Content:                d.Content,
			SectionPath:            d.SectionPath,
			SemanticType:           d.SemanticType,
			EvidenceLevel:          d.EvidenceLevel,
			RecommendationStrength: d.RecommendationStrength,
			Oversized:              d.Oversized,
			OverlapTokens:          d.OverlapTokens,
			LeadingOverlapTokens:   d.LeadingOverlapTokens,
		}, c.tok)
		metrics.ChunksTotal.WithLabelValues(string(parsed.Type), string(ch.SemanticType())).Inc()
		res.Chunks = append(res.Chunks, ch)
	}

	log.Debug("Document chunked",
		zap.String("document_type", string(parsed.Type)),
		zap.String("assembler", res.Assembler),
		zap.Int("sections", len(parsed.Sections)),
		zap.Int("chunks", len(res.Chunks)),
	)
	return res
}
