package db

// KNNQuery asks for the K nearest vectors, optionally pre-filtered by TAG values.
type KNNQuery struct {
	IndexName string
	// Field is the VECTOR field; empty means "vector".
	Field   string
	Filters Filters
	Vector  []float32
	K       int
	// EFRuntime widens the HNSW candidate list for this query; 0 keeps the index default.
	EFRuntime    int
	ReturnFields []string
}

// TextQuery is a BM25 search for any of the query terms.
type TextQuery struct {
	IndexName string
	// Fields are the TEXT fields searched together; empty means "content".
	Fields       []string
	Query        string
	Filters      Filters
	TopK         int
	ReturnFields []string
}

// Filters restricts a search to TAG values: values of one field are OR-ed,
// fields are AND-ed.
type Filters map[string][]string

// SearchResult holds the hits in server order.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit. Score is a similarity for KNN and the BM25 score
// for text search; higher is better for both.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
