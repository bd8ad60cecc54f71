package citation

import "testing"

func TestExtract(t *testing.T) {
	text := "Members are suspended after 30 days [C-bylaws_94_0]. Dues rise 【C-decl_2_1】 and again [c-decl_2_1]."
	got := Extract(text)
	want := []string{"bylaws_94_0", "decl_2_1", "decl_2_1"}
	if len(got) != len(want) {
		t.Fatalf("Extract = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_IgnoresBareBrackets(t *testing.T) {
	if got := Extract("a note [sic] and a citation-free sentence [42]"); got != nil {
		t.Errorf("bare brackets are not citations, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bylaws_04_2", "bylaws_4_2"},
		{"bylaws-94-0", "bylaws_94_0"},
		{"file__name_02_003", "file_name_2_3"},
		{"_edge_1_2_", "edge_1_2"},
		{"a0b_01_0", "a0b_1_0"},
		{"doc_0_0", "doc_0_0"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	idToIdx := map[string]int{
		"bylaws_4_2":  7,
		"bylaws_94_0": 3,
	}
	tests := []struct {
		token   string
		wantIdx int
		wantOK  bool
	}{
		{"bylaws_4_2", 7, true},    // exact
		{"Bylaws_04_2", 7, true},   // zero padding
		{"bylaws-4-2", 7, true},    // dash for underscore
		{"BYLAWS_94_0", 3, true},   // case only
		{"bylaws_9_4", 0, false},   // unrelated ID must not fuzzy-match
		{"other_4_2", 0, false},
	}
	for _, tt := range tests {
		idx, ok := Resolve(tt.token, idToIdx)
		if ok != tt.wantOK || (ok && idx != tt.wantIdx) {
			t.Errorf("Resolve(%q) = (%d, %v), want (%d, %v)", tt.token, idx, ok, tt.wantIdx, tt.wantOK)
		}
	}
}

func TestResolve_SamePaddingVariantsAgree(t *testing.T) {
	idToIdx := map[string]int{"decl_2_1": 5}
	a, okA := Resolve("decl_02_1", idToIdx)
	b, okB := Resolve("decl_2_01", idToIdx)
	if !okA || !okB || a != b {
		t.Errorf("padding variants should resolve identically: (%d,%v) vs (%d,%v)", a, okA, b, okB)
	}
}
