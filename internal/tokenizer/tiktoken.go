package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var offlineLoader sync.Once

// Tiktoken wraps a BPE encoding with a fixed, embedded vocabulary.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding (e.g. cl100k_base) from the embedded BPE files,
// so no network access happens at start-up.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	offlineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int { return len(t.encode(text)) }

// Truncate returns the longest prefix of text holding at most max tokens.
func (t *Tiktoken) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	ids := t.encode(text)
	if len(ids) <= max {
		return text
	}
	return t.enc.Decode(ids[:max])
}

// Windows splits text into consecutive pieces of at most size tokens.
func (t *Tiktoken) Windows(text string, size int) []string {
	if size <= 0 {
		return nil
	}
	ids := t.encode(text)
	var out []string
	for i := 0; i < len(ids); i += size {
		j := i + size
		if j > len(ids) {
			j = len(ids)
		}
		out = append(out, t.enc.Decode(ids[i:j]))
	}
	return out
}
