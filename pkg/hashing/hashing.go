// Package hashing computes the content fingerprints used for change
// detection: a document digest over canonical bytes, a text digest over the
// ordered page texts, and per-page digests for locating changes.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Result holds every digest computed for one document snapshot. All digests
// are hex-encoded SHA-256 and stable across platforms and runs.
type Result struct {
	// DocHash fingerprints the canonical document bytes.
	DocHash string

	// TextHash fingerprints the normalized concatenation of all page texts
	// in order.
	TextHash string

	// PageHashes holds one digest per page, in page order. Blank pages
	// hash the empty normalized string.
	PageHashes []string

	// TextLength is the total length of the raw extracted text.
	TextLength int
}

var (
	// Zero-width and BOM characters that extractors emit inconsistently.
	invisibleRe  = regexp.MustCompile(`[\x{200b}-\x{200f}\x{feff}]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var quoteFolder = strings.NewReplacer(
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'", // left single quote
	"’", "'", // right single quote
)

// HashBytes returns the hex-encoded SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashText normalizes text and returns its hex-encoded SHA-256. The
// normalization removes the cosmetic jitter extractors produce between runs
// (whitespace layout, invisible characters, smart quotes, letter case) so
// only meaning-bearing differences change the digest.
func HashText(text string) string {
	return HashBytes([]byte(NormalizeText(text)))
}

// NormalizeText applies the comparison normalization used by HashText.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	normalized := invisibleRe.ReplaceAllString(text, "")
	normalized = quoteFolder.Replace(normalized)
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.ToLower(strings.TrimSpace(normalized))
}

// Hash computes every digest for a snapshot: canonical bytes plus the
// ordered per-page extracted text.
func Hash(canonical []byte, pages []string) Result {
	pageHashes := make([]string, len(pages))
	totalLen := 0
	for i, page := range pages {
		pageHashes[i] = HashText(page)
		totalLen += len(page)
	}

	return Result{
		DocHash:    HashBytes(canonical),
		TextHash:   HashText(strings.Join(pages, "\n")),
		PageHashes: pageHashes,
		TextLength: totalLen,
	}
}
