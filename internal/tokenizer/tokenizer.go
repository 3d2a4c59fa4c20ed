// Package tokenizer counts, truncates and windows text with the vocabulary shared by
// the chunk assemblers and the embedding model.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer is loaded once at process start and shared read-only afterwards.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int
	// Truncate returns the longest prefix of text holding at most max tokens.
	Truncate(text string, max int) string
	// Windows splits text into consecutive pieces of at most size tokens.
	Windows(text string, size int) []string
}

// New builds the tokenizer named by kind ("lexical" or "tiktoken").
func New(kind, encoding string) (Tokenizer, error) {
	switch kind {
	case "", "lexical":
		return NewLexical(), nil
	case "tiktoken":
		return NewTiktoken(encoding)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}

// Stats summarizes a text for size decisions and logging.
type Stats struct {
	Tokens    int
	Chars     int
	Words     int
	Sentences int
}

// Measure computes Stats for text.
func Measure(t Tokenizer, text string) Stats {
	return Stats{
		Tokens:    t.Count(text),
		Chars:     utf8.RuneCountInString(text),
		Words:     len(strings.Fields(text)),
		Sentences: len(SplitSentences(text)),
	}
}

// SplitSentences splits on terminal punctuation followed by whitespace and a
// non-lowercase rune, so decimals ("3.1.1") and "e.g. the" stay intact.
// Text after the last terminator is kept as a final sentence.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '.' && r != '!' && r != '?' {
			i += size
			continue
		}
		end := i + size
		// swallow repeated terminators and closing quotes/brackets
		for end < len(text) && strings.ContainsRune(".!?\"')]", rune(text[end])) {
			end++
		}
		ws := end
		for ws < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[ws:])
			if !unicode.IsSpace(r2) {
				break
			}
			ws += s2
		}
		if ws == end || ws == len(text) {
			i = end
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[ws:])
		if unicode.IsLower(next) {
			i = end
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = ws
		i = ws
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
