// Package filter restricts retrieval to chunks with matching metadata.
package filter

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
)

// MaxValuesPerField is the maximum number of values accepted for one field.
const MaxValuesPerField = 32

// Filters is a conjunction of per-field value sets. A field with no values matches
// everything; values within a field are OR-ed.
type Filters struct {
	documentTypes  []document.Type
	semanticTypes  []chunk.SemanticType
	evidenceLevels []string
	documentIDs    []string
}

// New validates and creates Filters.
func New(documentTypes, semanticTypes, evidenceLevels, documentIDs []string) (Filters, error) {
	for name, vals := range map[string][]string{
		"document_types":  documentTypes,
		"semantic_types":  semanticTypes,
		"evidence_levels": evidenceLevels,
		"document_ids":    documentIDs,
	} {
		if len(vals) > MaxValuesPerField {
			return Filters{}, fmt.Errorf("too many %s values (max %d)", name, MaxValuesPerField)
		}
		for _, v := range vals {
			if strings.TrimSpace(v) == "" {
				return Filters{}, fmt.Errorf("empty value in %s", name)
			}
		}
	}

	var f Filters
	for _, s := range documentTypes {
		t, err := document.ParseType(s)
		if err != nil {
			return Filters{}, err
		}
		if t == document.Unknown {
			return Filters{}, fmt.Errorf("document_types cannot contain %q", s)
		}
		f.documentTypes = append(f.documentTypes, t)
	}
	for _, s := range semanticTypes {
		f.semanticTypes = append(f.semanticTypes, chunk.SemanticType(strings.ToLower(s)))
	}
	f.evidenceLevels = append(f.evidenceLevels, evidenceLevels...)
	f.documentIDs = append(f.documentIDs, documentIDs...)
	return f, nil
}

// DocumentTypes returns the accepted document types.
func (f Filters) DocumentTypes() []document.Type { return f.documentTypes }

// SemanticTypes returns the accepted semantic types.
func (f Filters) SemanticTypes() []chunk.SemanticType { return f.semanticTypes }

// EvidenceLevels returns the accepted evidence levels.
func (f Filters) EvidenceLevels() []string { return f.evidenceLevels }

// DocumentIDs returns the accepted document ids.
func (f Filters) DocumentIDs() []string { return f.documentIDs }

// IsEmpty reports whether the filters match everything.
func (f Filters) IsEmpty() bool {
	return len(f.documentTypes) == 0 && len(f.semanticTypes) == 0 &&
		len(f.evidenceLevels) == 0 && len(f.documentIDs) == 0
}

// Matches evaluates the filters against a chunk in memory. Backends that cannot push a
// filter down use it for post-filtering.
func (f Filters) Matches(c chunk.Chunk) bool {
	if len(f.documentTypes) > 0 && !contains(f.documentTypes, c.DocumentType()) {
		return false
	}
	if len(f.semanticTypes) > 0 && !contains(f.semanticTypes, c.SemanticType()) {
		return false
	}
	if len(f.evidenceLevels) > 0 && !containsFold(f.evidenceLevels, c.EvidenceLevel()) {
		return false
	}
	if len(f.documentIDs) > 0 && !contains(f.documentIDs, c.DocumentID()) {
		return false
	}
	return true
}

// Strings returns the filter values keyed by stored field name.
func (f Filters) Strings() map[string][]string {
	out := make(map[string][]string, 4)
	if len(f.documentTypes) > 0 {
		vals := make([]string, len(f.documentTypes))
		for i, t := range f.documentTypes {
			vals[i] = string(t)
		}
		out["document_type"] = vals
	}
	if len(f.semanticTypes) > 0 {
		vals := make([]string, len(f.semanticTypes))
		for i, t := range f.semanticTypes {
			vals[i] = string(t)
		}
		out["semantic_type"] = vals
	}
	if len(f.evidenceLevels) > 0 {
		out["evidence_level"] = f.evidenceLevels
	}
	if len(f.documentIDs) > 0 {
		out["document_id"] = f.documentIDs
	}
	return out
}

func contains[T comparable](vals []T, v T) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

func containsFold(vals []string, v string) bool {
	for _, x := range vals {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
