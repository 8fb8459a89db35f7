package extract

import (
	"context"
	"regexp"
	"strings"
)

// Identity is the extracted document identity: the official title, the form
// number when one is printed on the document, and how sure the provider is.
type Identity struct {
	Title      string
	FormNumber string
	Confidence float64
	Reasoning  string
}

// DisplayTitle renders "Title {FormNumber}" for listings.
func (id Identity) DisplayTitle() string {
	if id.Title == "" {
		return ""
	}
	if id.FormNumber == "" {
		return id.Title
	}
	return id.Title + " {" + id.FormNumber + "}"
}

// TitleExtractor derives document identity from extracted text.
type TitleExtractor interface {
	ExtractIdentity(ctx context.Context, text string) (*Identity, error)

	// Name returns the provider name (e.g., "bedrock", "heuristic").
	Name() string
}

var (
	// formNumberRe matches printed form codes like ADR-103, CIV-775, or
	// compound codes like F207-143-000.
	formNumberRe = regexp.MustCompile(`\b[A-Z]{1,4}\d{0,3}-\d{2,4}(-\d{2,4})?\b`)

	// strictFormNumberRe is the high-confidence shape of a form code.
	strictFormNumberRe = regexp.MustCompile(`^[A-Z]{2,4}-\d{2,4}(/[A-Z]{2,4}-\d{2,4}(-[A-Z]+)?)?$`)
)

// FindFormNumber scans text for the first printed form code.
func FindFormNumber(text string) string {
	return formNumberRe.FindString(text)
}

// HeuristicTitleExtractor derives identity without a model call: the first
// substantial line is the title, the form code comes from pattern matching.
// It backs the "none" provider so identity resolution still has something to
// score against when no LLM is configured.
type HeuristicTitleExtractor struct{}

// NewHeuristicTitleExtractor creates the pattern-based provider.
func NewHeuristicTitleExtractor() *HeuristicTitleExtractor {
	return &HeuristicTitleExtractor{}
}

// ExtractIdentity picks the first line long enough to be a title and scans
// for a form code. Confidence reflects how much of the identity was found.
func (h *HeuristicTitleExtractor) ExtractIdentity(ctx context.Context, text string) (*Identity, error) {
	id := &Identity{FormNumber: FindFormNumber(text)}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 8 || formNumberRe.MatchString(line) && len(line) < 20 {
			continue
		}
		id.Title = line
		break
	}

	switch {
	case id.Title != "" && strictFormNumberRe.MatchString(id.FormNumber):
		id.Confidence = 0.7
	case id.Title != "":
		id.Confidence = 0.5
	default:
		id.Confidence = 0.2
	}
	id.Reasoning = "pattern-based extraction without model assistance"
	return id, nil
}

// Name returns the provider name.
func (h *HeuristicTitleExtractor) Name() string {
	return "heuristic"
}
