package tokenizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxPieceRunes approximates a WordPiece vocabulary: long words split into several
// subword tokens, short words and punctuation are one token each.
const maxPieceRunes = 6

var lexicalPattern = regexp.MustCompile(`[\p{L}\p{M}]+|\p{N}+|[^\s\p{L}\p{M}\p{N}]`)

// Lexical is a deterministic, dependency free subword approximation. It needs no
// vocabulary file, so tests and offline runs use it.
type Lexical struct{}

// NewLexical returns the lexical tokenizer.
func NewLexical() *Lexical { return &Lexical{} }

// span is a token's byte range in the source text.
type span struct{ start, end int }

func (l *Lexical) spans(text string) []span {
	matches := lexicalPattern.FindAllStringIndex(text, -1)
	out := make([]span, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		if utf8.RuneCountInString(text[start:end]) <= maxPieceRunes {
			out = append(out, span{start, end})
			continue
		}
		n := 0
		pieceStart := start
		for i := range text[start:end] {
			if n == maxPieceRunes {
				out = append(out, span{pieceStart, start + i})
				pieceStart = start + i
				n = 0
			}
			n++
		}
		out = append(out, span{pieceStart, end})
	}
	return out
}

// Count returns the number of tokens in text.
func (l *Lexical) Count(text string) int { return len(l.spans(text)) }

// Truncate returns the longest prefix of text holding at most max tokens.
func (l *Lexical) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	sp := l.spans(text)
	if len(sp) <= max {
		return text
	}
	return strings.TrimSpace(text[:sp[max-1].end])
}

// Windows splits text into consecutive pieces of at most size tokens.
func (l *Lexical) Windows(text string, size int) []string {
	if size <= 0 {
		return nil
	}
	sp := l.spans(text)
	if len(sp) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(sp); i += size {
		j := i + size
		if j > len(sp) {
			j = len(sp)
		}
		end := len(text)
		if j < len(sp) {
			end = sp[j].start
		}
		out = append(out, strings.TrimSpace(text[sp[i].start:end]))
	}
	return out
}
