package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	canonical := []byte("%PDF-1.7 canonical bytes")
	pages := []string{"Page one text", "Page two text"}

	a := Hash(canonical, pages)
	b := Hash(canonical, pages)

	assert.Equal(t, a, b)
	assert.Len(t, a.DocHash, 64)
	assert.Len(t, a.TextHash, 64)
	require.Len(t, a.PageHashes, 2)
}

func TestHashText_NormalizesCosmeticJitter(t *testing.T) {
	base := HashText("Notice of Hearing")

	assert.Equal(t, base, HashText("  Notice   of\n\tHearing  "))
	assert.Equal(t, base, HashText("notice of hearing"))
	assert.Equal(t, base, HashText("Notice\u200b of Hearing\ufeff"))
}

func TestHashText_FoldsSmartQuotes(t *testing.T) {
	assert.Equal(t, HashText(`Defendant's "Answer"`), HashText("Defendant’s “Answer”"))
}

func TestHashText_MeaningChangesDigest(t *testing.T) {
	assert.NotEqual(t, HashText("Filing fee: $100"), HashText("Filing fee: $150"))
}

func TestHashText_EmptyIsStable(t *testing.T) {
	assert.Equal(t, HashText(""), HashText("   \n\t  "))
}

func TestHash_PageOrderMatters(t *testing.T) {
	canonical := []byte("doc")

	a := Hash(canonical, []string{"first", "second"})
	b := Hash(canonical, []string{"second", "first"})

	assert.NotEqual(t, a.TextHash, b.TextHash)
	assert.ElementsMatch(t, a.PageHashes, b.PageHashes)
}

func TestHash_BlankPagePermitted(t *testing.T) {
	result := Hash([]byte("doc"), []string{"text", "", "more"})

	require.Len(t, result.PageHashes, 3)
	assert.Equal(t, HashText(""), result.PageHashes[1])
}
