package chunking

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

func testConfigs() Configs {
	return Configs{
		Guideline:  Config{TargetTokens: 60, MinTokens: 20, MaxTokens: 80, OverlapTokens: 10},
		Calculator: Config{TargetTokens: 384, MinTokens: 32, MaxTokens: 512},
		Literature: Config{TargetTokens: 60, MinTokens: 20, MaxTokens: 80, OverlapTokens: 10},
	}
}

func newTestChunker() *Chunker {
	return New(tokenizer.NewLexical(), testConfigs(), zap.NewNop())
}

func mustDoc(t *testing.T, id string, typ document.Type) document.Document {
	t.Helper()
	doc, err := document.New(id, "", "", typ)
	require.NoError(t, err)
	return doc
}

// generalParagraph is 30 lexical tokens with no recommendation or evidence markers.
func generalParagraph(i int) string {
	return fmt.Sprintf("Cohort %d was followed for ten years. Annual imaging was performed in each patient. "+
		"Outcomes were recorded by trained staff.", i)
}

func recommendationParagraph(i int) string {
	return fmt.Sprintf("Recommendation %d.1: Clinicians should offer annual imaging to cohort %d "+
		"(Strong Recommendation; Evidence Level B).", i, i)
}

func guidelineText() string {
	var b strings.Builder
	b.WriteString("# Screening\n\n")
	for i := 1; i <= 10; i++ {
		b.WriteString(generalParagraph(i) + "\n\n")
	}
	b.WriteString("## Follow-up\n\n")
	for i := 11; i <= 20; i++ {
		b.WriteString(generalParagraph(i) + "\n\n")
	}
	return b.String()
}

func TestChunk_SizeBounds(t *testing.T) {
	c := newTestChunker()
	cfg := testConfigs().Guideline

	res := c.Chunk(context.Background(), mustDoc(t, "g1", document.Guideline), guidelineText())

	require.False(t, res.FellBack)
	require.Len(t, res.Chunks, 10)
	for _, ch := range res.Chunks {
		assert.False(t, ch.Oversized())
		assert.LessOrEqual(t, ch.TokenCount(), cfg.MaxTokens, "chunk %d", ch.Ordinal())
		assert.GreaterOrEqual(t, ch.TokenCount(), cfg.MinTokens, "chunk %d", ch.Ordinal())
	}
	assert.Equal(t, []string{"Screening"}, res.Chunks[0].SectionPath())
	assert.Equal(t, []string{"Screening", "Follow-up"}, res.Chunks[9].SectionPath())
}

func TestChunk_SizeBoundsAcrossShapes(t *testing.T) {
	cfg := testConfigs().Guideline
	tests := []struct {
		name  string
		text  string
		paths [][]string
	}{
		{
			name:  "short lead paragraph",
			text:  "# Scope\n\n" + words(5) + "\n\n" + words(68) + "\n\n" + words(40),
			paths: [][]string{{"Scope"}, {"Scope"}},
		},
		{
			name:  "short sibling section",
			text:  "# A\n\n" + words(6) + "\n\n# B\n\n" + words(50) + "\n\n" + words(50),
			paths: [][]string{nil, {"B"}},
		},
		{
			name: "short subsection",
			text: "# Scope\n\n## Intro\n\n" + words(6) + "\n\n## Details\n\n" + words(50) + "\n\n" + words(50) +
				"\n\n# Dosing\n\n" + words(30),
			paths: [][]string{{"Scope"}, {"Scope", "Details"}, {"Dosing"}},
		},
		{
			name:  "short trailing paragraph",
			text:  "# Scope\n\n" + words(60) + "\n\n" + words(15),
			paths: [][]string{{"Scope"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestChunker().Chunk(context.Background(), mustDoc(t, "g5", document.Guideline), tt.text)

			require.Len(t, res.Chunks, len(tt.paths))
			for i, ch := range res.Chunks {
				assert.False(t, ch.Oversized())
				assert.GreaterOrEqual(t, ch.TokenCount(), cfg.MinTokens, "chunk %d", i)
				assert.LessOrEqual(t, ch.TokenCount(), cfg.MaxTokens, "chunk %d", i)
				assert.Equal(t, tt.paths[i], ch.SectionPath(), "chunk %d", i)
			}
		})
	}
}

func TestChunk_OverlapBudget(t *testing.T) {
	c := newTestChunker()

	res := c.Chunk(context.Background(), mustDoc(t, "g1", document.Guideline), guidelineText())
	require.Len(t, res.Chunks, 10)

	// edge chunks take the whole budget from one side: the next chunk's first sentence
	first := res.Chunks[0]
	assert.Equal(t, 9, first.OverlapTokens())
	assert.True(t, strings.HasSuffix(first.Content(), "Cohort 3 was followed for ten years."))

	// five tokens per side admit no whole boundary sentence, so interior chunks stay bare
	mid := res.Chunks[1]
	assert.Zero(t, mid.OverlapTokens())
	assert.True(t, strings.HasPrefix(mid.Content(), "Cohort 3 was followed"))
	assert.True(t, strings.HasSuffix(mid.Content(), "Outcomes were recorded by trained staff."))

	cfgs := testConfigs()
	cfgs.Guideline.OverlapTokens = 20
	wide := New(tokenizer.NewLexical(), cfgs, zap.NewNop())
	res = wide.Chunk(context.Background(), mustDoc(t, "g1", document.Guideline), guidelineText())
	require.Len(t, res.Chunks, 10)

	mid = res.Chunks[1]
	assert.Equal(t, 19, mid.OverlapTokens())
	assert.True(t, strings.HasPrefix(mid.Content(), "Outcomes were recorded by trained staff.\n\nCohort 3"))
	assert.True(t, strings.HasSuffix(mid.Content(), "staff.\n\nCohort 5 was followed for ten years."))
	for _, ch := range res.Chunks {
		assert.LessOrEqual(t, ch.TokenCount(), cfgs.Guideline.MaxTokens, "chunk %d", ch.Ordinal())
	}
}

func TestChunk_RecommendationContiguity(t *testing.T) {
	var b strings.Builder
	b.WriteString("# 2 Management\n\n")
	for i := 1; i <= 8; i++ {
		b.WriteString(generalParagraph(i) + "\n\n")
		b.WriteString(recommendationParagraph(i) + "\n\n")
	}

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "g2", document.Guideline), b.String())
	require.NotEmpty(t, res.Chunks)

	for i := 1; i <= 8; i++ {
		rec := recommendationParagraph(i)
		holders := 0
		for _, ch := range res.Chunks {
			if n := strings.Count(ch.Content(), rec); n > 0 {
				holders += n
				assert.Equal(t, chunk.Recommendation, ch.SemanticType())
				assert.Equal(t, "B", ch.EvidenceLevel())
				assert.Equal(t, "strong", ch.RecommendationStrength())
			}
		}
		assert.Equal(t, 1, holders, "recommendation %d must appear whole in exactly one chunk", i)
	}
}

func TestChunk_Idempotent(t *testing.T) {
	c := newTestChunker()
	doc := mustDoc(t, "g1", document.Guideline)

	first := c.Chunk(context.Background(), doc, guidelineText())
	second := c.Chunk(context.Background(), doc, guidelineText())

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].ID(), second.Chunks[i].ID())
		assert.Equal(t, first.Chunks[i].Content(), second.Chunks[i].Content())
	}
	assert.Equal(t, first.Chunks, second.Chunks)
}

func TestChunk_RecommendationScenario(t *testing.T) {
	text := "# 3 Active Surveillance\n\n## 3.1 Eligibility\n\n" +
		"Recommendation 3.1.1 (Strong Recommendation; Evidence Level A): Clinicians should offer active " +
		"surveillance to low-risk patients. Surveillance includes PSA testing. Biopsy is repeated as needed.\n"

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "aua", document.Unknown), text)

	require.Len(t, res.Chunks, 1)
	ch := res.Chunks[0]
	assert.Equal(t, document.Guideline, res.Type)
	assert.Equal(t, chunk.Recommendation, ch.SemanticType())
	assert.Equal(t, "A", ch.EvidenceLevel())
	assert.Equal(t, "strong", ch.RecommendationStrength())
	assert.Equal(t, []string{"3 Active Surveillance", "3.1 Eligibility"}, ch.SectionPath())
}

func TestChunk_OversizedUnit(t *testing.T) {
	rec := "Clinicians should repeat imaging" + strings.Repeat(" and review every prior result", 20) + "."

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "g3", document.Guideline), rec)

	require.Len(t, res.Chunks, 1)
	assert.True(t, res.Chunks[0].Oversized())
	assert.Greater(t, res.Chunks[0].TokenCount(), testConfigs().Guideline.MaxTokens)
	assert.Equal(t, rec, res.Chunks[0].Content())
	assert.Len(t, res.Warnings, 1)
}

func TestChunk_SentenceFallback(t *testing.T) {
	var sents []string
	for i := 1; i <= 10; i++ {
		sents = append(sents, fmt.Sprintf("Cohort %d was followed for ten years.", i))
	}
	text := strings.Join(sents, " ")

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "g4", document.Guideline), text)

	require.Greater(t, len(res.Chunks), 1)
	for _, ch := range res.Chunks {
		assert.False(t, ch.Oversized())
		assert.LessOrEqual(t, ch.TokenCount(), testConfigs().Guideline.MaxTokens)
	}
	assert.True(t, strings.HasPrefix(res.Chunks[0].Content(), "Cohort 1 was followed for ten years. Cohort 2 was"))
}

func TestChunk_SmallCalculatorIsOneChunk(t *testing.T) {
	tok := tokenizer.NewLexical()
	text := "# HEART Score\n\n## Purpose\n\nStratifies chest pain patients in the emergency department.\n\n" +
		"## Inputs\n\nHistory, ECG, age, risk factors and troponin.\n\n## Formula\n\n"
	for tok.Count(text) < 350 {
		text += "Each element scores zero to two points. "
	}
	text += "\n\n## Interpretation\n\nScores of zero to three indicate low risk.\n"
	require.InDelta(t, 360, tok.Count(text), 40)

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "heart", document.Calculator), text)

	require.False(t, res.FellBack)
	require.Len(t, res.Chunks, 1)
	ch := res.Chunks[0]
	assert.Equal(t, chunk.CalculatorComplete, ch.SemanticType())
	assert.Contains(t, ch.Content(), "Formula")
	assert.Contains(t, ch.Content(), "Scores of zero to three indicate low risk.")
	assert.Equal(t, []string{"HEART Score"}, ch.SectionPath())
}

func TestChunk_CalculatorComponents(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("The score uses age and troponin values. ", 16))
	var b strings.Builder
	b.WriteString("# HEART Score\n\n")
	for _, h := range []string{"Purpose", "Inputs", "Formula", "Interpretation", "Clinical Use", "Evidence"} {
		b.WriteString("## " + h + "\n\n" + body + "\n\n")
	}

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "heart", document.Calculator), b.String())

	require.False(t, res.FellBack)
	var types []chunk.SemanticType
	for _, ch := range res.Chunks {
		types = append(types, ch.SemanticType())
		assert.False(t, ch.Oversized())
	}
	assert.Equal(t, []chunk.SemanticType{
		chunk.CalculatorPurpose,
		chunk.CalculatorAlgorithm,
		chunk.CalculatorInterpretation,
		chunk.CalculatorEvidence,
	}, types)
	assert.True(t, strings.HasPrefix(res.Chunks[0].Content(), "HEART Score\n\nPurpose"))
	assert.Contains(t, res.Chunks[2].Content(), "Clinical Use")
}

func TestChunk_CalculatorWithoutComponentsFallsBack(t *testing.T) {
	text := "# Notes\n\nSome free text about the tool.\n\n## Misc\n\nMore free text."

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "calc", document.Calculator), text)

	assert.True(t, res.FellBack)
	assert.Equal(t, "hierarchical-semantic", res.Assembler)
	require.NotEmpty(t, res.Chunks)
	assert.Equal(t, document.Calculator, res.Chunks[0].DocumentType())
	assert.NotEmpty(t, res.Warnings)
}

func TestChunk_Literature(t *testing.T) {
	text := "# Surveillance in Low-Risk Disease\n\n" +
		"## Abstract\n\n### Background\n\n" + generalParagraph(1) + "\n\n### Results\n\n" + generalParagraph(2) + "\n\n" +
		"## Methods\n\n### Cohort\n\n" + generalParagraph(3) + "\n\n" + generalParagraph(4) + "\n\n" +
		"### Statistics\n\n" + generalParagraph(5) + "\n\n" +
		"## Discussion\n\n" + generalParagraph(6) + "\n\n" + generalParagraph(7) + "\n\n" + generalParagraph(8) + "\n\n" +
		generalParagraph(9) + "\n\n" + generalParagraph(10) + "\n\n" +
		"## Conclusions\n\n" + generalParagraph(11) + "\n"

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "paper", document.Literature), text)

	require.False(t, res.FellBack)
	var types []chunk.SemanticType
	for _, ch := range res.Chunks {
		types = append(types, ch.SemanticType())
	}
	assert.Equal(t, []chunk.SemanticType{
		chunk.ArticleAbstract,
		chunk.ArticleMethods,
		chunk.ArticleMethods,
		chunk.ArticleDiscussion,
		chunk.ArticleDiscussion,
		chunk.ArticleDiscussion,
		chunk.ArticleConclusions,
	}, types)

	abstract := res.Chunks[0]
	assert.Contains(t, abstract.Content(), generalParagraph(1))
	assert.Contains(t, abstract.Content(), generalParagraph(2))
	assert.Zero(t, abstract.OverlapTokens())

	conclusions := res.Chunks[len(res.Chunks)-1]
	assert.Equal(t, generalParagraph(11), conclusions.Content())
	assert.Zero(t, conclusions.OverlapTokens())

	assert.Equal(t, []string{"Surveillance in Low-Risk Disease", "Methods", "Cohort"}, res.Chunks[1].SectionPath())
}

func TestChunk_LiteratureWithoutSectionsFallsBack(t *testing.T) {
	text := "# Case Notes\n\n" + generalParagraph(1)

	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "paper", document.Literature), text)

	assert.True(t, res.FellBack)
	require.Len(t, res.Chunks, 1)
}

func TestChunk_Empty(t *testing.T) {
	res := newTestChunker().Chunk(context.Background(), mustDoc(t, "empty", document.Guideline), "  \n")
	assert.Empty(t, res.Chunks)
	assert.False(t, res.FellBack)
}
