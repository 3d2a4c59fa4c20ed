package chunking

import "github.com/kailas-cloud/clinrag/internal/domain/document"

// Config bounds chunk sizes in tokens for one document type.
type Config struct {
	TargetTokens  int
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
}

// capacity is the packing limit. Overlap is reserved up front so injecting it never
// pushes a regular chunk above MaxTokens.
func (c Config) capacity() int {
	if n := c.MaxTokens - c.OverlapTokens; n > 0 {
		return n
	}
	return c.MaxTokens
}

// Configs holds bounds per document type.
type Configs struct {
	Guideline  Config
	Calculator Config
	Literature Config
}

// DefaultConfigs returns the bounds used when configuration leaves them unset.
func DefaultConfigs() Configs {
	return Configs{
		Guideline:  Config{TargetTokens: 384, MinTokens: 64, MaxTokens: 512, OverlapTokens: 48},
		Calculator: Config{TargetTokens: 384, MinTokens: 32, MaxTokens: 512},
		Literature: Config{TargetTokens: 512, MinTokens: 96, MaxTokens: 768, OverlapTokens: 64},
	}
}

// For returns the bounds for t. Unknown falls back to guideline bounds.
func (c Configs) For(t document.Type) Config {
	switch t {
	case document.Calculator:
		return c.Calculator
	case document.Literature:
		return c.Literature
	default:
		return c.Guideline
	}
}
