package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwatch/formwatch/pkg/hashing"
)

func hashPages(doc string, pages ...string) hashing.Result {
	return hashing.Hash([]byte(doc), pages)
}

func TestClassify_Baseline(t *testing.T) {
	next := hashPages("doc", "page one")

	c := Classify(nil, next, "", "page one")

	assert.Equal(t, CategoryBaseline, c.Category)
	assert.False(t, c.RequiresReview())
}

func TestClassify_Unchanged(t *testing.T) {
	prev := hashPages("doc", "page one", "page two")
	next := hashPages("doc", "page one", "page two")

	c := Classify(&prev, next, "page one\npage two", "page one\npage two")

	assert.Equal(t, CategoryUnchanged, c.Category)
	assert.Empty(t, c.AffectedPages)
}

func TestClassify_BinaryOnly(t *testing.T) {
	prev := hashPages("doc regenerated 2024", "page one")
	next := hashPages("doc regenerated 2025", "page one")

	c := Classify(&prev, next, "page one", "page one")

	assert.Equal(t, CategoryBinaryOnly, c.Category)
	assert.True(t, c.DocHashChanged)
	assert.False(t, c.TextHashChanged)
	assert.False(t, c.RequiresReview())
}

func TestClassify_TextChanged_AffectedPages(t *testing.T) {
	prev := hashPages("doc-a", "intro", "terms", "signatures")
	next := hashPages("doc-b", "intro", "terms with a new paragraph", "signatures")

	c := Classify(&prev, next,
		"intro\nterms\nsignatures",
		"intro\nterms with a new paragraph\nsignatures")

	assert.Equal(t, CategoryTextChanged, c.Category)
	assert.Equal(t, []int{1}, c.AffectedPages)
	assert.Zero(t, c.PagesAdded)
	assert.Zero(t, c.PagesRemoved)
	assert.True(t, c.RequiresReview())
}

func TestClassify_TextPrecedenceOverBinary(t *testing.T) {
	// Same canonical bytes would be unusual with different text, but text
	// identity must decide the category either way.
	prev := hashPages("doc", "old wording")
	next := hashPages("doc", "new wording")

	c := Classify(&prev, next, "old wording", "new wording")

	assert.Equal(t, CategoryTextChanged, c.Category)
	assert.False(t, c.DocHashChanged)
}

func TestClassify_PageCountGrew(t *testing.T) {
	prev := hashPages("doc-a", "one", "two")
	next := hashPages("doc-b", "one", "two", "three", "four")

	c := Classify(&prev, next, "one\ntwo", "one\ntwo\nthree\nfour")

	assert.Equal(t, CategoryTextChanged, c.Category)
	assert.Equal(t, []int{2, 3}, c.AffectedPages)
	assert.Equal(t, 2, c.PagesAdded)
	assert.Zero(t, c.PagesRemoved)
}

func TestClassify_PageCountShrankWithEdit(t *testing.T) {
	prev := hashPages("doc-a", "one", "two", "three")
	next := hashPages("doc-b", "one", "TWO EDITED")

	c := Classify(&prev, next, "one\ntwo\nthree", "one\nTWO EDITED")

	// First divergence at index 1, then everything through the end of the
	// longer sequence.
	assert.Equal(t, []int{1, 2}, c.AffectedPages)
	assert.Equal(t, 1, c.PagesRemoved)
}

func TestClassify_DiffSummary(t *testing.T) {
	prev := hashPages("doc-a", "fee schedule: $100")
	next := hashPages("doc-b", "fee schedule: $150")

	c := Classify(&prev, next, "fee schedule: $100\n", "fee schedule: $150\n")

	assert.Contains(t, c.DiffSummary, "Lines added: 1, removed: 1")
	assert.Contains(t, c.DiffSummary, "+ fee schedule: $150")
	assert.Contains(t, c.DiffSummary, "- fee schedule: $100")
}

func TestClassify_DiffSummaryTruncated(t *testing.T) {
	oldLines := make([]string, 40)
	newLines := make([]string, 40)
	for i := range oldLines {
		oldLines[i] = strings.Repeat("old ", 3)
		newLines[i] = strings.Repeat("new ", 3)
	}
	prev := hashPages("doc-a", strings.Join(oldLines, "\n"))
	next := hashPages("doc-b", strings.Join(newLines, "\n"))

	c := Classify(&prev, next, strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"))

	assert.Contains(t, c.DiffSummary, "more lines")
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 100.0, Similarity("", ""))
	require.Equal(t, 0.0, Similarity("something", ""))

	assert.Equal(t, 100.0, Similarity("Notice of Hearing", "notice   of hearing"))

	// Masked noise does not depress the score.
	assert.Equal(t, 100.0, Similarity(
		"Request for Accommodation Page 1 of 2 Rev. 1/2024",
		"Request for Accommodation Page 1 of 3 Rev. 6/2025"))

	high := Similarity(
		"Petition for Name Change. File this form with the clerk. Include the filing fee.",
		"Petition for Name Change. File this form with the court clerk. Include the filing fee.")
	assert.Greater(t, high, 80.0)

	low := Similarity(
		"Petition for Name Change. File this form with the clerk.",
		"Application for Wage Garnishment. Serve the employer within 10 days.")
	assert.Less(t, low, 50.0)
}
