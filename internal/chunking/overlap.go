package chunking

import (
	"strings"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// applyOverlap copies boundary context from neighbours into each non-atomic draft.
// Interior drafts take half the budget from each side; edge drafts take the whole
// budget from their only neighbour. Overlap is computed from the drafts as packed,
// so injected text is never re-donated.
func applyOverlap(drafts []Draft, cfg Config, tok tokenizer.Tokenizer) []Draft {
	budget := cfg.OverlapTokens
	if budget <= 0 || len(drafts) < 2 {
		return drafts
	}

	out := make([]Draft, len(drafts))
	copy(out, drafts)

	for i, d := range drafts {
		if d.Atomic || d.Oversized {
			continue
		}
		hasPrev := i > 0 && !drafts[i-1].Atomic
		hasNext := i < len(drafts)-1 && !drafts[i+1].Atomic

		var fromPrev, fromNext int
		switch {
		case hasPrev && hasNext:
			fromPrev = budget / 2
			fromNext = budget - fromPrev
		case hasPrev:
			fromPrev = budget
		case hasNext:
			fromNext = budget
		default:
			continue
		}

		room := cfg.MaxTokens - d.Tokens
		if room <= 0 {
			continue
		}

		var head, tail string
		if fromPrev > 0 {
			head = trailingText(boundary(drafts[i-1].units, false), min(fromPrev, room), tok)
			room -= tok.Count(head)
		}
		if fromNext > 0 && room > 0 {
			tail = leadingText(boundary(drafts[i+1].units, true), min(fromNext, room), tok)
		}
		if head == "" && tail == "" {
			continue
		}

		parts := make([]string, 0, 3)
		if head != "" {
			parts = append(parts, head)
		}
		parts = append(parts, d.Content)
		if tail != "" {
			parts = append(parts, tail)
		}
		content := strings.Join(parts, "\n\n")
		if tok.Count(content) > cfg.MaxTokens {
			continue
		}

		d.Content = content
		d.LeadingOverlapTokens = tok.Count(head)
		d.OverlapTokens = d.LeadingOverlapTokens + tok.Count(tail)
		d.Tokens = tok.Count(content)
		out[i] = d
	}
	return out
}

// boundary returns the unit adjacent to the receiving draft, or nil when overlap may
// not be drawn from it.
func boundary(units []unit, first bool) *unit {
	if len(units) == 0 {
		return nil
	}
	u := units[len(units)-1]
	if first {
		u = units[0]
	}
	if u.typ == chunk.Recommendation {
		return nil
	}
	return &u
}

// trailingText returns the longest run of whole sentences from the end of u that
// fits in n tokens, or "" when not even the last sentence fits.
func trailingText(u *unit, n int, tok tokenizer.Tokenizer) string {
	if u == nil || n <= 0 {
		return ""
	}
	sents := tokenizer.SplitSentences(u.text)
	start := len(sents)
	for start > 0 && tok.Count(strings.Join(sents[start-1:], " ")) <= n {
		start--
	}
	return strings.Join(sents[start:], " ")
}

// leadingText mirrors trailingText from the start of u.
func leadingText(u *unit, n int, tok tokenizer.Tokenizer) string {
	if u == nil || n <= 0 {
		return ""
	}
	sents := tokenizer.SplitSentences(u.text)
	end := 0
	for end < len(sents) && tok.Count(strings.Join(sents[:end+1], " ")) <= n {
		end++
	}
	return strings.Join(sents[:end], " ")
}
