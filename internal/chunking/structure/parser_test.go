package structure

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
)

const guideline = `Clinically Localized Prostate Cancer

1 Risk Stratification

Clinicians should use risk groups.

1.1 Low Risk

Recommendation 1.1.1 (Strong Recommendation; Evidence Level A): Offer active surveillance.

1.2 Intermediate Risk

Consider MRI before biopsy.

2 Treatment

Discuss options.
`

func TestParse_NumberedHierarchy(t *testing.T) {
	res := NewParser().Parse(guideline, document.Unknown)

	if res.Type != document.Guideline || !res.Detected {
		t.Errorf("Type = %q detected=%v", res.Type, res.Detected)
	}

	wantTitles := []string{"", "1 Risk Stratification", "1.1 Low Risk", "1.2 Intermediate Risk", "2 Treatment"}
	if len(res.Sections) != len(wantTitles) {
		t.Fatalf("got %d sections: %+v", len(res.Sections), res.Sections)
	}
	for i, want := range wantTitles {
		if res.Sections[i].Title != want {
			t.Errorf("section %d title = %q, want %q", i, res.Sections[i].Title, want)
		}
	}

	pre := res.Sections[0]
	if pre.Level != 0 || pre.Content != "Clinically Localized Prostate Cancer" || pre.Path != nil {
		t.Errorf("preamble = %+v", pre)
	}

	low := res.Sections[2]
	if low.Level != 2 {
		t.Errorf("low risk level = %d", low.Level)
	}
	if strings.Join(low.Path, "|") != "1 Risk Stratification|1.1 Low Risk" {
		t.Errorf("low risk path = %v", low.Path)
	}
	if !strings.HasPrefix(low.Content, "Recommendation 1.1.1") {
		t.Errorf("low risk content = %q", low.Content)
	}

	treat := res.Sections[4]
	if len(treat.Path) != 1 || treat.Path[0] != "2 Treatment" {
		t.Errorf("stack must pop on shallower header, path = %v", treat.Path)
	}
}

func TestParse_Offsets(t *testing.T) {
	res := NewParser().Parse(guideline, document.Guideline)
	for i, s := range res.Sections {
		if s.StartOffset > s.EndOffset {
			t.Errorf("section %d: start %d > end %d", i, s.StartOffset, s.EndOffset)
		}
		if i > 0 && s.StartOffset != res.Sections[i-1].EndOffset {
			t.Errorf("section %d does not start where %d ends", i, i-1)
		}
		if s.Title != "" && !strings.HasPrefix(guideline[s.StartOffset:], s.Title) {
			t.Errorf("section %d offset does not point at its header", i)
		}
	}
	if last := res.Sections[len(res.Sections)-1]; last.EndOffset != len(guideline) {
		t.Errorf("last section must end at document end, got %d", last.EndOffset)
	}
}

func TestParse_Markdown(t *testing.T) {
	text := "# Abstract\nShort summary.\n## Background\nWhy.\n# Methods\nHow.\n"
	res := NewParser().Parse(text, document.Literature)

	if res.Detected {
		t.Error("declared type must not be re-detected")
	}
	if len(res.Sections) != 3 {
		t.Fatalf("got %d sections", len(res.Sections))
	}
	bg := res.Sections[1]
	if bg.Level != 2 || strings.Join(bg.Path, "|") != "Abstract|Background" || bg.Content != "Why." {
		t.Errorf("background = %+v", bg)
	}
}

func TestParse_NoHeaders(t *testing.T) {
	text := "Just a paragraph.\n\nAnother one."
	res := NewParser().Parse(text, document.Unknown)

	if len(res.Sections) != 1 {
		t.Fatalf("expected one whole-document section, got %d", len(res.Sections))
	}
	s := res.Sections[0]
	if s.Content != text || s.StartOffset != 0 || s.EndOffset != len(text) {
		t.Errorf("section = %+v", s)
	}
}

func TestParse_NumberedListIsNotHeader(t *testing.T) {
	text := "## Inputs\n1. Age over 65\n2. Creatinine above 2\n3. Prior stroke\n"
	res := NewParser().Parse(text, document.Calculator)

	if len(res.Sections) != 1 {
		t.Fatalf("list items must stay content, got %d sections", len(res.Sections))
	}
	if !strings.Contains(res.Sections[0].Content, "2. Creatinine above 2") {
		t.Errorf("content = %q", res.Sections[0].Content)
	}
}

func TestParse_NumberedSentenceIsNotHeader(t *testing.T) {
	text := "1 Scope\n\n2 Clinicians should discuss the risks of surgery with every patient.\n"
	res := NewParser().Parse(text, document.Guideline)
	if len(res.Sections) != 1 {
		t.Fatalf("sentence ending with a period must not be a header, got %d sections", len(res.Sections))
	}
}

func TestDetectType(t *testing.T) {
	p := NewParser()
	tests := []struct {
		name string
		text string
		want document.Type
	}{
		{"guideline", "Recommendation 2.1: strong recommendation, evidence level B.", document.Guideline},
		{"calculator", "The formula uses these input variables. Calculator output.", document.Calculator},
		{"literature", "Abstract. Methods: cohort. Results: fewer deaths. Discussion.", document.Literature},
		{"no keywords", "Plain prose about nothing in particular.", document.Guideline},
		{"tie", "formula abstract", document.Guideline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.DetectType(tt.text); got != tt.want {
				t.Errorf("DetectType() = %q, want %q (scores %v)", got, tt.want, p.scorer.Scores(tt.text))
			}
		})
	}
}
