package mode

import (
	"fmt"
	"strings"
)

// Mode selects which candidate generators the retriever runs.
type Mode string

// Retrieval mode constants.
const (
	// Hybrid runs vector and keyword search and fuses the scores.
	Hybrid Mode = "hybrid"
	// Semantic runs vector search only.
	Semantic Mode = "semantic"
	// Keyword runs full-text search only.
	Keyword Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}

// UsesVector reports whether vector search contributes candidates.
func (m Mode) UsesVector() bool { return m == Hybrid || m == Semantic }

// UsesKeyword reports whether keyword search contributes candidates.
func (m Mode) UsesKeyword() bool { return m == Hybrid || m == Keyword }

// Parse maps user input to a Mode; empty means Hybrid.
func Parse(s string) (Mode, error) {
	if s == "" {
		return Hybrid, nil
	}
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid retrieval mode %q", s)
	}
	return m, nil
}
