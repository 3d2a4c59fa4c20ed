package document

import (
	"fmt"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxTextSize is the maximum raw document size in bytes accepted for ingestion.
const MaxTextSize = 4 << 20

// Type selects the chunking strategy for a document.
type Type string

// Document type constants. Unknown asks the structure parser to detect the type.
const (
	Unknown    Type = ""
	Guideline  Type = "guideline"
	Calculator Type = "calculator"
	Literature Type = "literature"
)

// IsValid reports whether t is a known type or Unknown.
func (t Type) IsValid() bool {
	return t == Unknown || t == Guideline || t == Calculator || t == Literature
}

// ParseType parses a user supplied type. Aliases used by content teams are accepted.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Unknown, nil
	case "guideline", "guidelines":
		return Guideline, nil
	case "calculator", "calculator-doc", "calculator_doc":
		return Calculator, nil
	case "literature", "article", "paper":
		return Literature, nil
	default:
		return Unknown, fmt.Errorf("unknown document type %q", s)
	}
}

// Document is the source a set of chunks belongs to. The core references it but does
// not own its lifecycle.
type Document struct {
	id     string
	title  string
	source string
	typ    Type
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_.:-]+$, 1-256 chars.
func New(id, title, source string, typ Type) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores, dots, colons and hyphens")
	}
	if !typ.IsValid() {
		return Document{}, fmt.Errorf("invalid document type %q", typ)
	}
	return Document{id: id, title: title, source: source, typ: typ}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, title, source string, typ Type) Document {
	return Document{id: id, title: title, source: source, typ: typ}
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// Title returns the human readable title.
func (d Document) Title() string { return d.title }

// Source returns where the document came from (publisher, URL, file path).
func (d Document) Source() string { return d.source }

// Type returns the document type, Unknown until detected.
func (d Document) Type() Type { return d.typ }

// WithType returns a copy with the type set.
func (d Document) WithType(t Type) Document {
	d.typ = t
	return d
}
