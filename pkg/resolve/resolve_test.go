package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInspector answers Inspect from a URL-keyed map.
type scriptedInspector struct {
	profiles map[string]*CandidateProfile
	calls    []string
}

func (s *scriptedInspector) Inspect(ctx context.Context, url string) (*CandidateProfile, error) {
	s.calls = append(s.calls, url)
	profile, ok := s.profiles[url]
	if !ok {
		return nil, errors.New("inspection failed")
	}
	return profile, nil
}

const priorText = "Petition for Name Change. File this form with the clerk of the superior court. Include the filing fee and two copies."

func listingWith(links ...string) string {
	page := "<html><body>"
	for _, link := range links {
		page += `<a href="` + link + `">form</a>`
	}
	return page + "</body></html>"
}

func newTestResolver(fetcher *pageFetcher, inspector CandidateInspector) *Resolver {
	return NewResolver(fetcher, inspector, Config{HighSimilarity: 80, LowSimilarity: 50}, nil)
}

func TestResolve_FormNumberMatch(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith("nc-100-new.pdf", "other.pdf"),
	}}
	r := newTestResolver(fetcher, nil)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL:  "https://courts.example.gov/forms/nc-100.pdf",
		FormNumber: "NC-100",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSameForm, res.Status)
	assert.True(t, res.Status.Moved())
	assert.Equal(t, "https://courts.example.gov/forms/nc-100-new.pdf", res.URL)
}

func TestResolve_HighSimilarityRelocated(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith("petition-renamed.pdf"),
	}}
	inspector := &scriptedInspector{profiles: map[string]*CandidateProfile{
		"https://courts.example.gov/forms/petition-renamed.pdf": {Text: priorText},
	}}
	r := newTestResolver(fetcher, inspector)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL: "https://courts.example.gov/forms/petition.pdf",
		PriorText: priorText,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRelocated, res.Status)
	assert.Equal(t, "https://courts.example.gov/forms/petition-renamed.pdf", res.URL)
	assert.Equal(t, 100.0, res.Similarity)
}

func TestResolve_HighSimilarityWithFormNumberIsSameForm(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith("renamed.pdf"),
	}}
	inspector := &scriptedInspector{profiles: map[string]*CandidateProfile{
		"https://courts.example.gov/forms/renamed.pdf": {Text: priorText, FormNumber: "NC-100"},
	}}
	r := newTestResolver(fetcher, inspector)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL:  "https://courts.example.gov/forms/petition.pdf",
		FormNumber: "NC-100",
		PriorText:  priorText,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSameForm, res.Status)
}

func TestResolve_ModerateSimilarityNameChange(t *testing.T) {
	// Roughly half the candidate text overlaps the prior text.
	candidateText := "Petition for Change of Name and Gender. File this form with the clerk of the superior court. Serve all parties."

	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith("petition-v2.pdf"),
	}}
	inspector := &scriptedInspector{profiles: map[string]*CandidateProfile{
		"https://courts.example.gov/forms/petition-v2.pdf": {
			Text:  candidateText,
			Title: "Petition for Change of Name and Gender",
		},
	}}
	r := newTestResolver(fetcher, inspector)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL: "https://courts.example.gov/forms/petition.pdf",
		Title:     "Petition for Name Change",
		PriorText: priorText,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNameChange, res.Status)
	assert.Equal(t, "Petition for Change of Name and Gender", res.Title)
	assert.GreaterOrEqual(t, res.Similarity, 50.0)
	assert.Less(t, res.Similarity, 80.0)
}

func TestResolve_LowSimilarityNotFound(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith("unrelated.pdf"),
	}}
	inspector := &scriptedInspector{profiles: map[string]*CandidateProfile{
		"https://courts.example.gov/forms/unrelated.pdf": {
			Text: "Application for Wage Garnishment. Serve the employer within ten days of entry of judgment.",
		},
	}}
	r := newTestResolver(fetcher, inspector)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL: "https://courts.example.gov/forms/petition.pdf",
		PriorText: priorText,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNotFound, res.Status)
	assert.False(t, res.Status.Moved())
	assert.Empty(t, res.URL)
}

func TestResolve_EmptyListingNotFound(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith(),
	}}
	r := newTestResolver(fetcher, nil)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL: "https://courts.example.gov/forms/petition.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestResolve_DeadURLExcluded(t *testing.T) {
	// The listing still shows the dead link; it must not match itself.
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith("nc-100.pdf"),
	}}
	r := newTestResolver(fetcher, nil)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL:  "https://courts.example.gov/forms/nc-100.pdf",
		FormNumber: "NC-100",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestResolve_ListingUnreachable(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{}}
	r := newTestResolver(fetcher, nil)

	_, err := r.Resolve(context.Background(), Request{
		SourceURL: "https://courts.example.gov/forms/petition.pdf",
	})
	assert.Error(t, err)
}

func TestResolve_ExplicitListingURL(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/all-forms/": listingWith("nc-100.pdf"),
	}}
	r := newTestResolver(fetcher, nil)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL:  "https://courts.example.gov/forms/dead.pdf",
		ListingURL: "https://courts.example.gov/all-forms/",
		FormNumber: "NC-100",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSameForm, res.Status)
	assert.Equal(t, "https://courts.example.gov/all-forms/nc-100.pdf", res.URL)
}

func TestResolve_CandidateBudget(t *testing.T) {
	links := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	fetcher := &pageFetcher{pages: map[string]string{
		"https://courts.example.gov/forms/": listingWith(links...),
	}}
	inspector := &scriptedInspector{profiles: map[string]*CandidateProfile{}}
	r := NewResolver(fetcher, inspector, Config{HighSimilarity: 80, LowSimilarity: 50, MaxCandidates: 2}, nil)

	res, err := r.Resolve(context.Background(), Request{
		SourceURL: "https://courts.example.gov/forms/petition.pdf",
		PriorText: priorText,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNotFound, res.Status)
	assert.Len(t, inspector.calls, 2)
}
