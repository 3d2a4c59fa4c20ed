package clinrag

// DocumentType selects the chunk assembler.
type DocumentType string

// Document type constants. TypeAuto detects the type from the text.
const (
	TypeAuto       DocumentType = ""
	TypeGuideline  DocumentType = "guideline"
	TypeCalculator DocumentType = "calculator"
	TypeLiterature DocumentType = "literature"
)

// SearchMode controls the retrieval algorithm.
type SearchMode string

// Search mode constants.
const (
	ModeHybrid   SearchMode = "hybrid"
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
)

// Document is a source to chunk and store. An empty ID is derived from the text.
type Document struct {
	ID     string
	Title  string
	Source string
	Type   DocumentType
	Text   string
}

// IngestReport summarizes one stored document.
type IngestReport struct {
	DocumentID string
	Type       DocumentType
	Assembler  string
	Chunks     int
	Oversized  int
	FellBack   bool
	Warnings   []string
}

// BatchResult is the outcome of one item in a batch operation.
type BatchResult struct {
	ID     string
	OK     bool
	Chunks int
	Err    error
}

// Chunk is a retrievable unit of a document.
type Chunk struct {
	ID                     string
	DocumentID             string
	Ordinal                int
	Content                string
	TokenCount             int
	SectionPath            []string
	SemanticType           string
	EvidenceLevel          string
	RecommendationStrength string
	Oversized              bool
}

// Preview is the chunking of a document that was not stored.
type Preview struct {
	Type      DocumentType
	Assembler string
	FellBack  bool
	Warnings  []string
	Chunks    []Chunk
}

// Hit is a single retrieval result.
type Hit struct {
	Chunk
	Score float64
}

// RetrieveOptions tunes one retrieval. Zero values keep the client defaults;
// the Disable* switches turn stages off.
type RetrieveOptions struct {
	K                   int
	Mode                SearchMode
	SimilarityThreshold float64
	DocumentTypes       []DocumentType
	SemanticTypes       []string
	EvidenceLevels      []string
	DocumentIDs         []string
	DisableRerank       bool
	DisableMMR          bool
	Expand              bool
	ExpansionHops       int
}
