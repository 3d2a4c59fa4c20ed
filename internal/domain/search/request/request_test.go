package request

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New("  active surveillance  ", filter.Filters{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "active surveillance" {
		t.Errorf("Query() = %q", r.Query())
	}
	o := r.Options()
	if o.Mode != mode.Hybrid {
		t.Errorf("Mode = %q, want hybrid", o.Mode)
	}
	if r.K() != DefaultK {
		t.Errorf("K() = %d, want %d", r.K(), DefaultK)
	}
	if o.VectorWeight != 0.7 || o.KeywordWeight != 0.3 {
		t.Errorf("weights = %g/%g", o.VectorWeight, o.KeywordWeight)
	}
	if o.Fusion != Weighted {
		t.Errorf("Fusion = %q", o.Fusion)
	}
	if o.Lambda != 0.5 {
		t.Errorf("Lambda = %g", o.Lambda)
	}
	if o.ExpansionHops != 1 {
		t.Errorf("ExpansionHops = %d", o.ExpansionHops)
	}
}

func TestNew_EmptyQuery(t *testing.T) {
	if _, err := New("   ", filter.Filters{}, Options{}); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestNew_QueryTooLong(t *testing.T) {
	_, err := New(strings.Repeat("a", MaxQueryLength+1), filter.Filters{}, Options{})
	if err == nil || !strings.Contains(err.Error(), "too long") {
		t.Fatalf("expected too long error, got %v", err)
	}
}

func TestNew_Clamping(t *testing.T) {
	r, err := New("q", filter.Filters{}, Options{K: 1000, RerankCandidates: 10, ExpansionHops: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := r.Options()
	if o.K != MaxK {
		t.Errorf("K = %d, want %d", o.K, MaxK)
	}
	if o.RerankCandidates != MaxK {
		t.Errorf("RerankCandidates = %d, want raised to k", o.RerankCandidates)
	}
	if o.ExpansionHops != MaxExpansionHops {
		t.Errorf("ExpansionHops = %d", o.ExpansionHops)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"mode", Options{Mode: "geo"}},
		{"threshold", Options{SimilarityThreshold: 1.5}},
		{"weights", Options{VectorWeight: -1}},
		{"fusion", Options{Fusion: "borda"}},
		{"lambda", Options{Lambda: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New("q", filter.Filters{}, tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCandidates(t *testing.T) {
	r, _ := New("q", filter.Filters{}, Options{K: 4, RerankCandidates: 20, Rerank: true})
	if r.VectorCandidates() != 20 {
		t.Errorf("VectorCandidates() = %d, want rerankCandidates", r.VectorCandidates())
	}
	if r.KeywordCandidates() != 8 {
		t.Errorf("KeywordCandidates() = %d, want 2k", r.KeywordCandidates())
	}

	r, _ = New("q", filter.Filters{}, Options{K: 4, RerankCandidates: 20})
	if r.VectorCandidates() != 4 {
		t.Errorf("VectorCandidates() = %d, want k without rerank", r.VectorCandidates())
	}
}

func TestApply(t *testing.T) {
	k := 9
	off := false
	m := mode.Semantic
	base := Options{K: 5, Rerank: true, Mode: mode.Hybrid}

	got := base.Apply(Overrides{K: &k, Rerank: &off, Mode: &m})
	if got.K != 9 || got.Rerank || got.Mode != mode.Semantic {
		t.Errorf("Apply() = %+v", got)
	}
	if base.K != 5 || !base.Rerank {
		t.Error("Apply must not mutate the receiver")
	}
}
