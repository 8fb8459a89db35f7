// Package diff classifies the difference between two document snapshots
// from their digests and produces review-facing summaries.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/formwatch/formwatch/pkg/hashing"
)

// Category is the change classification for one new snapshot.
type Category string

const (
	// CategoryBaseline is the first observed version of a source; no
	// comparison is possible.
	CategoryBaseline Category = "baseline"

	// CategoryUnchanged means both text and document digests match.
	CategoryUnchanged Category = "unchanged"

	// CategoryBinaryOnly means the document digest moved while the text
	// digest did not: cosmetic regeneration requiring no review action.
	CategoryBinaryOnly Category = "binary_only"

	// CategoryTextChanged means the text digest moved: a semantic change.
	CategoryTextChanged Category = "text_changed"

	// CategoryRelocated tags a version fetched from a newly resolved URL.
	CategoryRelocated Category = "relocated"
)

// Classification is the outcome of comparing a new snapshot to its
// predecessor.
type Classification struct {
	Category        Category
	DocHashChanged  bool
	TextHashChanged bool

	// AffectedPages holds 0-based indices of pages whose digests differ,
	// including every trailing page of the longer sequence when page
	// counts diverge.
	AffectedPages []int
	PagesAdded    int
	PagesRemoved  int

	// DiffSummary is a human-readable description of the change.
	DiffSummary string
}

// RequiresReview reports whether the classification needs human action.
// Formatting-only changes are first-class: tracked, never actionable.
func (c Classification) RequiresReview() bool {
	return c.Category == CategoryTextChanged || c.Category == CategoryRelocated
}

// Classify compares the new snapshot's digests against the previous
// version's. A nil previous marks the baseline. Text identity takes
// precedence over binary identity: equal text with differing bytes is
// cosmetic regeneration, not a content change.
func Classify(previous *hashing.Result, next hashing.Result, previousText, nextText string) Classification {
	if previous == nil {
		return Classification{Category: CategoryBaseline}
	}

	docChanged := previous.DocHash != next.DocHash
	textChanged := previous.TextHash != next.TextHash

	switch {
	case textChanged:
		affected := comparePageHashes(previous.PageHashes, next.PageHashes)
		added := len(next.PageHashes) - len(previous.PageHashes)
		removed := len(previous.PageHashes) - len(next.PageHashes)
		if added < 0 {
			added = 0
		}
		if removed < 0 {
			removed = 0
		}
		return Classification{
			Category:        CategoryTextChanged,
			DocHashChanged:  docChanged,
			TextHashChanged: true,
			AffectedPages:   affected,
			PagesAdded:      added,
			PagesRemoved:    removed,
			DiffSummary:     summarize(previousText, nextText),
		}
	case docChanged:
		return Classification{
			Category:       CategoryBinaryOnly,
			DocHashChanged: true,
			DiffSummary:    "Format-only change: document bytes changed but extracted text is identical.",
		}
	default:
		return Classification{Category: CategoryUnchanged}
	}
}

// comparePageHashes returns the 0-based indices where positional page
// digests differ. Pages past the end of the shorter sequence always count
// as affected.
func comparePageHashes(old, new []string) []int {
	max := len(old)
	if len(new) > max {
		max = len(new)
	}

	var affected []int
	for i := 0; i < max; i++ {
		switch {
		case i >= len(old) || i >= len(new):
			affected = append(affected, i)
		case old[i] != new[i]:
			affected = append(affected, i)
		}
	}
	return affected
}

const summaryMaxLines = 20

// summarize builds a compact line-level diff preview for reviewers.
func summarize(oldText, newText string) string {
	switch {
	case oldText == "" && newText == "":
		return "No text content to compare"
	case oldText == "":
		return fmt.Sprintf("New content added (%d characters)", len(newText))
	case newText == "":
		return fmt.Sprintf("All content removed (%d characters)", len(oldText))
	}

	dmp := diffmatchpatch.New()
	oldRunes, newRunes, lines := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(oldRunes, newRunes, false), lines)

	var added, removed int
	var preview []string
	for _, d := range diffs {
		for _, line := range splitDiffLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				added++
				preview = append(preview, "+ "+line)
			case diffmatchpatch.DiffDelete:
				removed++
				preview = append(preview, "- "+line)
			}
		}
	}

	if added == 0 && removed == 0 {
		return "Text normalized but no line changes"
	}

	summary := []string{
		fmt.Sprintf("Lines added: %d, removed: %d", added, removed),
		"",
		"Diff preview:",
	}
	if len(preview) > summaryMaxLines {
		summary = append(summary, preview[:summaryMaxLines]...)
		summary = append(summary, fmt.Sprintf("... and %d more lines", len(preview)-summaryMaxLines))
	} else {
		summary = append(summary, preview...)
	}
	return strings.Join(summary, "\n")
}

func splitDiffLines(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
