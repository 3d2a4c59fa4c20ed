package domain

const (
	// DefaultDimensions is the embedding width of the reference model.
	DefaultDimensions = 768
	// DefaultContextWindow is the embedding model's context window in tokens.
	DefaultContextWindow = 256
)
