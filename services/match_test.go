package services

import (
	"testing"

	"find_my_home/models"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"래미안대치팰리스(1단지)", "래미안대치팰리스"},
		{"헬리오시티 2단지", "헬리오시티"},
		{"e편한세상 3차", "e편한세상"},
		{"GS자이 아파트", "gs자이아파트"},
		{"래미안대치팰리스 101동~103동", "래미안대치팰리스"},
		{"개포현대 200동", "개포현대"},
		{"은마", "은마"},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	names := []string{"래미안대치팰리스(1단지)", "헬리오시티 2단지", "잠실엘스", "THE H 반포"}
	for _, n := range names {
		once := NormalizeName(n)
		if twice := NormalizeName(once); twice != once {
			t.Errorf("normalization not idempotent for %q: %q != %q", n, once, twice)
		}
	}
}

func TestMatchScore(t *testing.T) {
	cases := []struct {
		target, candidate string
		want              int
	}{
		{"래미안대치팰리스", "래미안대치팰리스", 100},
		{"래미안대치팰리스", "래미안대치팰리스아파트", 70},
		// whole Hangul words only: the digit splits 미도 off as a word
		{"미도1맨션", "미도2아파트", 40},
		// shared syllables inside longer words never count
		{"대치삼성", "삼성래미안", 0},
		{"대치래미안", "래미안아파트", 0},
		{"은마", "잠실엘스", 0},
		{"", "은마", 0},
	}
	for _, c := range cases {
		if got := MatchScore(c.target, c.candidate); got != c.want {
			t.Errorf("MatchScore(%q, %q) = %d, want %d", c.target, c.candidate, got, c.want)
		}
	}
}

func TestBestKBMatchThreshold(t *testing.T) {
	candidates := []NamedCandidate{
		{ID: 1, Name: "잠실엘스"},
		{ID: 2, Name: "래미안대치팰리스"},
		{ID: 3, Name: "대치아이파크"},
	}
	got := BestKBMatch("래미안대치팰리스(1단지)", candidates)
	if got == nil || got.ID != 2 {
		t.Fatalf("expected candidate 2, got %+v", got)
	}
	if got := BestKBMatch("부산더샵센텀", candidates); got != nil {
		t.Errorf("expected no match below threshold, got %+v", got)
	}
}

func complexNamed(name string) *models.Complex {
	return &models.Complex{Name: name}
}

func TestResolveComplexWaterfall(t *testing.T) {
	candidates := []*models.Complex{
		complexNamed("래미안대치팰리스"),
		complexNamed("은마 아파트"),
		complexNamed("THE SHARP 센텀"),
		complexNamed("헬리오시티 2단지"),
	}

	// exact
	if got := ResolveComplex("래미안대치팰리스", candidates); got != candidates[0] {
		t.Errorf("exact match failed: %+v", got)
	}
	// case-insensitive substring
	if got := ResolveComplex("the sharp 센텀", candidates); got != candidates[2] {
		t.Errorf("case-insensitive match failed: %+v", got)
	}
	if got := ResolveComplex("래미안대치팰리스1차", candidates); got != candidates[0] {
		t.Errorf("raw substring match failed: %+v", got)
	}
	// space-stripped
	if got := ResolveComplex("은마아파트", candidates); got != candidates[1] {
		t.Errorf("space-stripped match failed: %+v", got)
	}
	// normalized (parenthetical note dropped on the deal side)
	if got := ResolveComplex("은마아파트(1단지)", candidates); got != candidates[1] {
		t.Errorf("normalized match failed: %+v", got)
	}
	// normalized substring: spaces and the note only go away in
	// normalization, then containment decides
	if got := ResolveComplex("래미안 대치 (신축)", candidates); got != candidates[0] {
		t.Errorf("normalized substring match failed: %+v", got)
	}
	// no match
	if got := ResolveComplex("수지푸르지오", candidates); got != nil {
		t.Errorf("expected nil for unknown name, got %+v", got)
	}
	if got := ResolveComplex("", candidates); got != nil {
		t.Errorf("expected nil for empty name, got %+v", got)
	}
}
