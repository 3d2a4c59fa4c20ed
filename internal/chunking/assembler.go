// Package chunking turns parsed sections into size-bounded, semantically coherent
// chunks. Each document type has its own assembly strategy; all share one packer.
package chunking

import (
	"github.com/kailas-cloud/clinrag/internal/chunking/semantic"
	"github.com/kailas-cloud/clinrag/internal/chunking/structure"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// Assembler builds drafts from a document's sections.
type Assembler interface {
	Name() string
	Assemble(sections []structure.Section, cfg Config) ([]Draft, error)
}

// For returns the assembler for a document type. Unknown types get the
// hierarchical-semantic assembler.
func For(t document.Type, tok tokenizer.Tokenizer, det *semantic.Detector) Assembler {
	switch t {
	case document.Calculator:
		return NewAlgorithm(tok, det)
	case document.Literature:
		return NewSectionBased(tok, det)
	default:
		return NewHierarchical(tok, det)
	}
}
