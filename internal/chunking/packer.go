package chunking

import (
	"github.com/kailas-cloud/clinrag/internal/chunking/semantic"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// packer holds the packing rules shared by all assemblers.
type packer struct {
	tok tokenizer.Tokenizer
	det *semantic.Detector
}

// units splits content into classified paragraph units.
func (p packer) units(content string) []unit {
	detected := p.det.Detect(content)
	out := make([]unit, len(detected))
	for i, d := range detected {
		out[i] = unit{
			text:     d.Text,
			tokens:   p.tok.Count(d.Text),
			typ:      d.Type,
			level:    d.EvidenceLevel,
			strength: d.RecommendationStrength,
		}
	}
	return out
}

// sentences breaks u into sentence units that inherit its classification.
func (p packer) sentences(u unit) []unit {
	sents := tokenizer.SplitSentences(u.text)
	out := make([]unit, len(sents))
	for i, s := range sents {
		out[i] = unit{
			text:     s,
			tokens:   p.tok.Count(s),
			typ:      u.typ,
			level:    u.level,
			strength: u.strength,
			sentence: true,
		}
	}
	return out
}

func (p packer) draft(units []unit, path []string) Draft {
	content := joinUnits(units)
	d := Draft{
		Content:     content,
		SectionPath: path,
		Tokens:      p.tok.Count(content),
		units:       units,
	}
	d.SemanticType, d.EvidenceLevel, d.RecommendationStrength = classify(units)
	return d
}

// pack groups contiguous units greedily up to the packing capacity. A unit larger
// than MaxTokens becomes its own oversized draft. With classBreaks, a draft that
// already reached TargetTokens is closed when the unit class changes.
func (p packer) pack(units []unit, cfg Config, path []string, classBreaks bool) []Draft {
	limit := cfg.capacity()

	var (
		out       []Draft
		cur       []unit
		curTokens int
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, p.draft(cur, path))
		cur, curTokens = nil, 0
	}

	for _, u := range units {
		if u.tokens > cfg.MaxTokens {
			flush()
			d := p.draft([]unit{u}, path)
			d.Oversized = true
			out = append(out, d)
			continue
		}
		if len(cur) > 0 {
			last := cur[len(cur)-1]
			switch {
			case classBreaks && u.typ != last.typ && curTokens >= cfg.TargetTokens:
				flush()
			case p.tok.Count(joinUnits(append(cur[:len(cur):len(cur)], u))) > limit:
				flush()
			}
		}
		cur = append(cur, u)
		curTokens = p.tok.Count(joinUnits(cur))
	}
	flush()

	return p.mergeSmall(out, cfg)
}

// mergeSmall folds every draft below MinTokens into a neighbour. A merge that leaves
// room for overlap wins over one that only stays within MaxTokens; between equal
// candidates the neighbour sharing more of the section path wins, then the next one.
// A draft no neighbour can absorb takes whole units from its predecessor instead.
func (p packer) mergeSmall(drafts []Draft, cfg Config) []Draft {
	for i := 0; i < len(drafts); {
		if !small(drafts[i], cfg) {
			i++
			continue
		}
		j := p.mergeTarget(drafts, i, cfg)
		if j < 0 {
			i++
			continue
		}
		lo := min(i, j)
		drafts[lo] = p.merge(drafts[lo], drafts[lo+1])
		drafts = append(drafts[:lo+1], drafts[lo+2:]...)
		i = lo
	}
	for i := 1; i < len(drafts); i++ {
		if small(drafts[i], cfg) && mergeable(drafts[i-1]) {
			drafts[i-1], drafts[i] = p.rebalance(drafts[i-1], drafts[i], cfg)
		}
	}
	return drafts
}

func small(d Draft, cfg Config) bool {
	return d.Tokens < cfg.MinTokens && mergeable(d)
}

func mergeable(d Draft) bool {
	return !d.Oversized && !d.Atomic
}

// mergeTarget returns the neighbour of drafts[i] to merge with, or -1.
func (p packer) mergeTarget(drafts []Draft, i int, cfg Config) int {
	best, bestRank, bestShared := -1, 0, -1
	for _, j := range []int{i + 1, i - 1} {
		if j < 0 || j >= len(drafts) || !mergeable(drafts[j]) {
			continue
		}
		lo := min(i, j)
		tokens := p.tok.Count(joinUnits(concatUnits(drafts[lo].units, drafts[lo+1].units)))
		rank := 0
		switch {
		case tokens <= cfg.capacity():
			rank = 2
		case tokens <= cfg.MaxTokens:
			rank = 1
		default:
			continue
		}
		shared := len(commonPrefix([][]string{drafts[i].SectionPath, drafts[j].SectionPath}))
		if rank > bestRank || (rank == bestRank && shared > bestShared) {
			best, bestRank, bestShared = j, rank, shared
		}
	}
	return best
}

// merge joins two adjacent drafts under their shared section path.
func (p packer) merge(a, b Draft) Draft {
	return p.draft(concatUnits(a.units, b.units), commonPrefix([][]string{a.SectionPath, b.SectionPath}))
}

// rebalance shifts whole units from the end of prev into next while next is below
// MinTokens and both drafts stay within bounds.
func (p packer) rebalance(prev, next Draft, cfg Config) (Draft, Draft) {
	head, tail := prev.units, next.units
	for len(head) > 1 && p.tok.Count(joinUnits(tail)) < cfg.MinTokens {
		moved := concatUnits(head[len(head)-1:], tail)
		if p.tok.Count(joinUnits(moved)) > cfg.capacity() ||
			p.tok.Count(joinUnits(head[:len(head)-1])) < cfg.MinTokens {
			break
		}
		head, tail = head[:len(head)-1], moved
	}
	if len(tail) == len(next.units) {
		return prev, next
	}
	return p.draft(head, prev.SectionPath), p.draft(tail, next.SectionPath)
}

func concatUnits(a, b []unit) []unit {
	out := make([]unit, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
