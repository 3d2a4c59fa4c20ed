package mode

import "testing"

func TestIsValid(t *testing.T) {
	valid := []Mode{Hybrid, Semantic, Keyword}
	for _, m := range valid {
		if !m.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", m)
		}
	}

	invalid := []Mode{"", "full-text", "vector", "HYBRID", "geo"}
	for _, m := range invalid {
		if m.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", m)
		}
	}
}

func TestGenerators(t *testing.T) {
	tests := []struct {
		m               Mode
		vector, keyword bool
	}{
		{Hybrid, true, true},
		{Semantic, true, false},
		{Keyword, false, true},
	}
	for _, tt := range tests {
		if tt.m.UsesVector() != tt.vector || tt.m.UsesKeyword() != tt.keyword {
			t.Errorf("%q: UsesVector=%v UsesKeyword=%v", tt.m, tt.m.UsesVector(), tt.m.UsesKeyword())
		}
	}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Mode{"": Hybrid, "semantic": Semantic, " Keyword ": Keyword} {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := Parse("vector"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
