package db

import (
	"fmt"
	"strconv"
	"strings"
)

// DistanceMetric is the VECTOR field DISTANCE_METRIC.
type DistanceMetric string

const (
	// DistanceCosine scores 1 - cosine similarity.
	DistanceCosine DistanceMetric = "COSINE"
	// DistanceIP scores 1 - inner product; equals cosine for unit vectors.
	DistanceIP DistanceMetric = "IP"
	// DistanceL2 is squared euclidean distance.
	DistanceL2 DistanceMetric = "L2"
)

// IndexFieldType enumerates the FT schema field kinds the chunk index uses.
type IndexFieldType int

// Field kinds.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

func (t IndexFieldType) keyword() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldText:
		return "TEXT"
	case IndexFieldVector:
		return "VECTOR"
	default:
		return ""
	}
}

// VectorParams configures an HNSW FLOAT32 vector field. Zero M and
// EFConstruction leave the server defaults (16 and 200).
type VectorParams struct {
	Dim            int
	Distance       DistanceMetric
	M              int
	EFConstruction int
}

// IndexField is one SCHEMA entry.
type IndexField struct {
	Name string
	Type IndexFieldType

	// Weight scales BM25 contributions of a TEXT field; 0 keeps the default 1.
	Weight float64
	// NoStem matches TEXT terms verbatim, for drug names and score acronyms.
	NoStem bool
	// Sortable keeps the value in the index for SORTBY.
	Sortable bool

	Vector VectorParams
}

// IndexDefinition describes an FT index over hashes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate reports the first problem as an ErrInvalidIndex.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return invalid("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return invalid("index name %q contains invalid characters", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return invalid("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return invalid("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return invalid("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *IndexField) validate() error {
	if f.Type.keyword() == "" {
		return invalid("field %q has unknown type %d", f.Name, f.Type)
	}
	if f.Type != IndexFieldText && (f.Weight != 0 || f.NoStem) {
		return invalid("field %q: WEIGHT and NOSTEM apply to TEXT only", f.Name)
	}
	if f.Weight < 0 {
		return invalid("field %q: negative weight", f.Name)
	}
	if f.Type != IndexFieldVector {
		return nil
	}
	if f.Sortable {
		return invalid("vector field %q cannot be SORTABLE", f.Name)
	}
	if f.Vector.Dim <= 0 {
		return invalid("vector field %q requires positive DIM", f.Name)
	}
	switch f.Vector.Distance {
	case "", DistanceCosine, DistanceIP, DistanceL2:
	default:
		return invalid("vector field %q: unknown distance %q", f.Name, f.Vector.Distance)
	}
	if f.Vector.M < 0 || f.Vector.EFConstruction < 0 {
		return invalid("vector field %q: negative HNSW parameter", f.Name)
	}
	return nil
}

// Args renders the FT.CREATE arguments that follow the command name.
func (idx *IndexDefinition) Args() ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		args = idx.Fields[i].appendArgs(args)
	}
	return args, nil
}

func (f *IndexField) appendArgs(args []string) []string {
	args = append(args, f.Name, f.Type.keyword())

	if f.Type == IndexFieldVector {
		distance := f.Vector.Distance
		if distance == "" {
			distance = DistanceCosine
		}
		attrs := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.Vector.Dim),
			"DISTANCE_METRIC", string(distance),
		}
		if f.Vector.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.Vector.M))
		}
		if f.Vector.EFConstruction > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.Vector.EFConstruction))
		}
		args = append(args, "HNSW", strconv.Itoa(len(attrs)))
		return append(args, attrs...)
	}

	if f.Weight > 0 {
		args = append(args, "WEIGHT", strconv.FormatFloat(f.Weight, 'f', -1, 64))
	}
	if f.NoStem {
		args = append(args, "NOSTEM")
	}
	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args
}

// String is the full FT.CREATE command, for logs and tests.
func (idx *IndexDefinition) String() string {
	args, err := idx.Args()
	if err != nil {
		return "FT.CREATE <" + err.Error() + ">"
	}
	return "FT.CREATE " + strings.Join(args, " ")
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '_' || r == ':' || r == '-':
			return false
		}
		return true
	}) < 0
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidIndex, fmt.Sprintf(format, args...))
}
