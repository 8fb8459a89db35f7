package diff

import (
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	similarityWhitespaceRe = regexp.MustCompile(`\s+`)
	pageFooterRe           = regexp.MustCompile(`\bpage\s*\d+\s*of\s*\d+\b`)
	dateRe                 = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	revisionRe             = regexp.MustCompile(`\brev\.?\s*\d{1,2}/\d{2,4}\b`)
)

// Similarity scores the lexical overlap of two texts on a 0-100 scale using
// edit distance over normalized text. Page footers, dates, and revision
// stamps are masked first so routine reissues do not depress the score.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	na := normalizeForSimilarity(a)
	nb := normalizeForSimilarity(b)
	if na == nb {
		return 100
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(na, nb, false)
	distance := dmp.DiffLevenshtein(diffs)

	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 100
	}

	score := 100 * (1 - float64(distance)/float64(longest))
	if score < 0 {
		return 0
	}
	return score
}

func normalizeForSimilarity(text string) string {
	normalized := strings.ToLower(text)
	normalized = pageFooterRe.ReplaceAllString(normalized, "")
	normalized = revisionRe.ReplaceAllString(normalized, "")
	normalized = dateRe.ReplaceAllString(normalized, "")
	normalized = similarityWhitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
