package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_DisplayTitle(t *testing.T) {
	id := Identity{Title: "Acknowledgement Of Security Interest", FormNumber: "F207-143-000"}
	assert.Equal(t, "Acknowledgement Of Security Interest {F207-143-000}", id.DisplayTitle())

	assert.Equal(t, "Notice of Hearing", Identity{Title: "Notice of Hearing"}.DisplayTitle())
	assert.Empty(t, Identity{FormNumber: "CIV-775"}.DisplayTitle())
}

func TestFindFormNumber(t *testing.T) {
	assert.Equal(t, "CIV-775", FindFormNumber("Superior Court of California\nCIV-775 Rev. 1/2024"))
	assert.Equal(t, "ADR-103", FindFormNumber("see form ADR-103 for details"))
	assert.Empty(t, FindFormNumber("no code printed here"))
}

func TestHeuristicTitleExtractor(t *testing.T) {
	text := "CIV-775\nNotice of Waiver of Oral Argument (Limited Civil Case)\nSuperior Court of California"

	id, err := NewHeuristicTitleExtractor().ExtractIdentity(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, "Notice of Waiver of Oral Argument (Limited Civil Case)", id.Title)
	assert.Equal(t, "CIV-775", id.FormNumber)
	assert.Equal(t, 0.7, id.Confidence)
}

func TestHeuristicTitleExtractor_NoTitle(t *testing.T) {
	id, err := NewHeuristicTitleExtractor().ExtractIdentity(context.Background(), "x\ny")
	require.NoError(t, err)

	assert.Empty(t, id.Title)
	assert.Equal(t, 0.2, id.Confidence)
}

func TestParseIdentityJSON(t *testing.T) {
	id, err := parseIdentityJSON(`{"title": "Petition for Name Change (Family Law)", "form_number": "NC-100", "confidence": 0.92, "reasoning": "clear header"}`)
	require.NoError(t, err)

	assert.Equal(t, "Petition for Name Change (Family Law)", id.Title)
	assert.Equal(t, "NC-100", id.FormNumber)
	assert.Equal(t, 0.92, id.Confidence)
}

func TestParseIdentityJSON_CodeFences(t *testing.T) {
	reply := "```json\n{\"title\": \"Notice of Hearing\", \"form_number\": \"\", \"confidence\": 0.8}\n```"

	id, err := parseIdentityJSON(reply)
	require.NoError(t, err)
	assert.Equal(t, "Notice of Hearing", id.Title)
}

func TestParseIdentityJSON_StrictCodeBoostsConfidence(t *testing.T) {
	id, err := parseIdentityJSON(`{"title": "T", "form_number": "CIV-775", "confidence": 0.7}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, id.Confidence, 1e-9)
}

func TestParseIdentityJSON_Invalid(t *testing.T) {
	_, err := parseIdentityJSON("I could not find a title, sorry.")
	assert.Error(t, err)
}
