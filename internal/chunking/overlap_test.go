package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func overlapDrafts(p packer) []Draft {
	return []Draft{
		p.draft(p.units("First block opens here. It closes calmly."), nil),
		p.draft(p.units("Middle block begins. Middle block ends."), nil),
		p.draft(p.units("Clinicians should biopsy the lesion."), nil),
	}
}

func TestApplyOverlap(t *testing.T) {
	p := testPacker()
	cfg := Config{TargetTokens: 40, MinTokens: 1, MaxTokens: 60, OverlapTokens: 8}
	drafts := overlapDrafts(p)

	out := applyOverlap(drafts, cfg, p.tok)

	// edge: the whole budget from the only neighbour
	assert.Equal(t, "First block opens here. It closes calmly.\n\nMiddle block begins. Middle block ends.", out[0].Content)
	assert.Equal(t, 8, out[0].OverlapTokens)

	// interior: half from each side, nothing from the recommendation
	assert.Equal(t, "It closes calmly.\n\nMiddle block begins. Middle block ends.", out[1].Content)
	assert.Equal(t, 4, out[1].OverlapTokens)

	// a recommendation may receive overlap
	assert.Equal(t, "Middle block begins. Middle block ends.\n\nClinicians should biopsy the lesion.", out[2].Content)

	// inputs are untouched
	assert.Equal(t, "Middle block begins. Middle block ends.", drafts[1].Content)
}

func TestApplyOverlap_Atomic(t *testing.T) {
	p := testPacker()
	cfg := Config{TargetTokens: 40, MinTokens: 1, MaxTokens: 60, OverlapTokens: 8}
	drafts := overlapDrafts(p)
	drafts[0].Atomic = true

	out := applyOverlap(drafts, cfg, p.tok)

	assert.Equal(t, drafts[0].Content, out[0].Content)
	assert.Equal(t, drafts[1].Content, out[1].Content)
	assert.Zero(t, out[1].OverlapTokens)
}

func TestApplyOverlap_RespectsMax(t *testing.T) {
	p := testPacker()
	cfg := Config{TargetTokens: 40, MinTokens: 1, MaxTokens: 10, OverlapTokens: 8}
	drafts := overlapDrafts(p)

	out := applyOverlap(drafts, cfg, p.tok)

	for i := range out {
		assert.LessOrEqual(t, p.tok.Count(out[i].Content), cfg.MaxTokens)
	}
}

func TestApplyOverlap_Disabled(t *testing.T) {
	p := testPacker()
	drafts := overlapDrafts(p)

	out := applyOverlap(drafts, Config{MaxTokens: 60}, p.tok)

	assert.Equal(t, drafts, out)
}

func TestBoundaryText_WholeSentencesOnly(t *testing.T) {
	p := testPacker()
	u := &unit{text: "Cohort 5 was followed. Outcomes were recorded by trained staff."}

	assert.Equal(t, "Outcomes were recorded by trained staff.", trailingText(u, 10, p.tok))
	assert.Equal(t, "Cohort 5 was followed.", leadingText(u, 6, p.tok))

	// no fragment when the boundary sentence does not fit
	assert.Empty(t, trailingText(u, 9, p.tok))
	assert.Empty(t, leadingText(u, 5, p.tok))
	assert.Empty(t, trailingText(nil, 5, p.tok))
}

func TestApplyOverlap_SkipsSideWithoutWholeSentence(t *testing.T) {
	p := testPacker()
	cfg := Config{TargetTokens: 40, MinTokens: 1, MaxTokens: 60, OverlapTokens: 6}
	drafts := []Draft{
		p.draft(p.units("Annual imaging was performed in each patient."), nil),
		p.draft(p.units("Middle block begins. Middle block ends."), nil),
		p.draft(p.units("Outcomes were recorded by trained staff."), nil),
	}

	out := applyOverlap(drafts, cfg, p.tok)

	// three tokens per side admit no whole sentence from either neighbour
	assert.Equal(t, drafts[1].Content, out[1].Content)
	assert.Zero(t, out[1].OverlapTokens)
	// the edge takes the whole budget: only the first sentence fits
	assert.Equal(t, "Annual imaging was performed in each patient.\n\nMiddle block begins.", out[0].Content)
	assert.Equal(t, 4, out[0].OverlapTokens)
}
