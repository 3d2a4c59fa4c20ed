package chunking

import (
	"github.com/kailas-cloud/clinrag/internal/chunking/semantic"
	"github.com/kailas-cloud/clinrag/internal/chunking/structure"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// Hierarchical packs semantic units section by section (guidelines).
type Hierarchical struct {
	p packer
}

// NewHierarchical creates the hierarchical-semantic assembler.
func NewHierarchical(tok tokenizer.Tokenizer, det *semantic.Detector) *Hierarchical {
	return &Hierarchical{p: packer{tok: tok, det: det}}
}

// Name implements Assembler.
func (h *Hierarchical) Name() string { return "hierarchical-semantic" }

// Assemble implements Assembler. It never fails. A section too small to stand alone
// is folded into an adjacent section's draft under their common section path.
func (h *Hierarchical) Assemble(sections []structure.Section, cfg Config) ([]Draft, error) {
	var out []Draft
	for _, s := range sections {
		units := h.p.units(s.Content)
		if len(units) == 0 {
			continue
		}
		// one wall of text: split into sentences, unless it is a recommendation
		if len(units) == 1 && units[0].tokens > cfg.capacity() && units[0].typ != chunk.Recommendation {
			units = h.p.sentences(units[0])
		}
		out = append(out, h.p.pack(units, cfg, s.Path, true)...)
	}
	return h.p.mergeSmall(out, cfg), nil
}
