// Package services holds the domain logic between the source clients and
// the store: name matching, ingest, batch collection and comparison.
package services

import (
	"regexp"
	"strings"

	"find_my_home/models"
)

// MatchThreshold is the minimum score BestKBMatch accepts.
const MatchThreshold = 40

var (
	parenRe       = regexp.MustCompile(`\([^)]*\)`)
	dongRangeRe   = regexp.MustCompile(`\d+동\s*~\s*\d+동`)
	dongSuffixRe  = regexp.MustCompile(`\d+동$`)
	danjiSuffixRe = regexp.MustCompile(`\d+단지$`)
	chaSuffixRe   = regexp.MustCompile(`\d+차$`)
	nonWordRe     = regexp.MustCompile(`[^0-9a-z가-힣]`)
	koreanWordRe  = regexp.MustCompile(`[가-힣]{2,}`)
)

// NormalizeName canonicalizes a complex name for matching: parenthesized
// content, dong ranges, trailing 동/단지/차 numbering and every non-word
// character go away, ASCII letters are lowered. Idempotent.
func NormalizeName(name string) string {
	cleaned := parenRe.ReplaceAllString(name, "")
	cleaned = dongRangeRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = dongSuffixRe.ReplaceAllString(cleaned, "")
	cleaned = danjiSuffixRe.ReplaceAllString(cleaned, "")
	cleaned = chaSuffixRe.ReplaceAllString(cleaned, "")
	cleaned = strings.ToLower(cleaned)
	cleaned = nonWordRe.ReplaceAllString(cleaned, "")
	return cleaned
}

// MatchScore scores two normalized names: 100 exact, 70 when one contains
// the other, 40 when they share a complete Hangul word. Words are the
// maximal Hangul runs left between digits and latin letters, so partial
// syllable overlap scores nothing.
func MatchScore(target, candidate string) int {
	if target == "" || candidate == "" {
		return 0
	}
	if target == candidate {
		return 100
	}
	if strings.Contains(target, candidate) || strings.Contains(candidate, target) {
		return 70
	}
	if sharesKoreanWord(target, candidate) {
		return 40
	}
	return 0
}

// sharesKoreanWord reports whether both names contain an identical Hangul
// word of two or more syllables.
func sharesKoreanWord(a, b string) bool {
	words := make(map[string]bool)
	for _, w := range koreanWordRe.FindAllString(a, -1) {
		words[w] = true
	}
	for _, w := range koreanWordRe.FindAllString(b, -1) {
		if words[w] {
			return true
		}
	}
	return false
}

// NamedCandidate is a source record carrying just enough to match by name.
type NamedCandidate struct {
	ID   int64
	Name string
}

// BestKBMatch picks the highest-scoring appraisal-source complex for a
// portal name, or nil when nothing reaches the threshold. Earlier
// candidates win ties.
func BestKBMatch(name string, candidates []NamedCandidate) *NamedCandidate {
	target := NormalizeName(name)
	bestScore := 0
	var best *NamedCandidate
	for i := range candidates {
		score := MatchScore(target, NormalizeName(candidates[i].Name))
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if bestScore < MatchThreshold {
		return nil
	}
	return best
}

// ResolveComplex finds the registered complex a government deal name refers
// to, trying strategies from strict to loose:
//
//  1. exact name
//  2. case-insensitive bidirectional substring
//  3. space-stripped exact
//  4. normalized exact
//  5. normalized bidirectional substring, longest overlap wins, both
//     sides at least three characters long
//
// Returns nil when every strategy fails.
func ResolveComplex(dealName string, candidates []*models.Complex) *models.Complex {
	dealName = strings.TrimSpace(dealName)
	if dealName == "" {
		return nil
	}

	for _, c := range candidates {
		if c.Name == dealName {
			return c
		}
	}

	lower := strings.ToLower(dealName)
	for _, c := range candidates {
		cl := strings.ToLower(c.Name)
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			return c
		}
	}

	stripped := strings.ReplaceAll(lower, " ", "")
	for _, c := range candidates {
		if strings.ReplaceAll(strings.ToLower(c.Name), " ", "") == stripped {
			return c
		}
	}

	norm := NormalizeName(dealName)
	if norm == "" {
		return nil
	}
	for _, c := range candidates {
		if NormalizeName(c.Name) == norm {
			return c
		}
	}

	// substring pass: among matching candidates the longest overlap
	// (the shorter of the two names) wins; earlier candidates win ties
	var best *models.Complex
	bestOverlap := 0
	normLen := len([]rune(norm))
	if normLen < 3 {
		return nil
	}
	for _, c := range candidates {
		cn := NormalizeName(c.Name)
		cnLen := len([]rune(cn))
		if cnLen < 3 {
			continue
		}
		if !strings.Contains(cn, norm) && !strings.Contains(norm, cn) {
			continue
		}
		overlap := cnLen
		if normLen < overlap {
			overlap = normLen
		}
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = c
		}
	}
	return best
}
