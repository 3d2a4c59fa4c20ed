package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of ingesting one document of a batch.
type Result struct {
	index  int
	id     string
	status ItemStatus
	chunks int
	err    error
}

// NewOK creates a successful batch result for a document stored as n chunks.
func NewOK(index int, id string, n int) Result {
	return Result{index: index, id: id, status: StatusOK, chunks: n}
}

// NewError creates a failed batch result.
func NewError(index int, id string, err error) Result {
	return Result{index: index, id: id, status: StatusError, err: err}
}

// Index returns the item position in the request.
func (r Result) Index() int { return r.index }

// ID returns the document identifier, empty when it could not be derived.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Chunks returns how many chunks were stored.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Failed counts the results with StatusError.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.status == StatusError {
			n++
		}
	}
	return n
}
