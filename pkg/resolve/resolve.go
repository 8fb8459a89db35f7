// Package resolve recovers the identity of a monitored document after its
// URL stops resolving. It crawls the parent listing page, scores candidate
// links by form-number token and text similarity, and classifies the best
// candidate as a same-form update, a name change, a relocation, or a dead
// end.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/formwatch/formwatch/pkg/diff"
	"github.com/formwatch/formwatch/pkg/fetch"
)

// Status classifies the resolution outcome.
type Status string

const (
	// StatusSameForm means the document moved but is the same form: the
	// form-number token matched, or the text matched at high similarity
	// under the same identity.
	StatusSameForm Status = "updated_same_form"

	// StatusNameChange means the content matched at moderate similarity
	// but the extracted title differs: same form under a new name.
	StatusNameChange Status = "updated_name_change"

	// StatusRelocated means no form-number evidence linked the candidate,
	// but its text matched at high similarity.
	StatusRelocated Status = "relocated"

	// StatusNotFound means no candidate could be linked to the source.
	// Terminal for the cycle.
	StatusNotFound Status = "not_found"
)

// Moved reports whether the resolution carries a new URL to adopt.
func (s Status) Moved() bool {
	return s == StatusSameForm || s == StatusNameChange || s == StatusRelocated
}

// Resolution is the resolver's verdict.
type Resolution struct {
	Status     Status
	URL        string // winning candidate, empty for not_found
	Similarity float64
	Title      string // candidate's extracted title, when inspected
	FormNumber string // candidate's form number, when known
	Reason     string
}

// CandidateProfile is what inspecting a candidate URL yields: its text for
// similarity scoring and its extracted identity.
type CandidateProfile struct {
	Text       string
	Title      string
	FormNumber string
}

// CandidateInspector fetches and extracts a candidate document. The monitor
// wires this to the real fetch/extract pipeline; tests script it.
type CandidateInspector interface {
	Inspect(ctx context.Context, url string) (*CandidateProfile, error)
}

// Request carries the source's last-known identity into resolution.
type Request struct {
	SourceURL  string
	ListingURL string // optional; parent path derived when empty
	FormNumber string // last-known form number
	Title      string // last-known title
	PriorText  string // most recent version's extracted text
}

// Config holds the classification thresholds on a 0-100 scale.
type Config struct {
	HighSimilarity float64
	LowSimilarity  float64

	// MaxCandidates bounds how many listing links are fetched and scored
	// by text similarity. Form-number matches short-circuit before this.
	MaxCandidates int
}

// Resolver resolves relocated documents against their listing page.
type Resolver struct {
	fetcher   fetch.Fetcher
	inspector CandidateInspector
	cfg       Config
	logger    hclog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(fetcher fetch.Fetcher, inspector CandidateInspector, cfg Config, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	return &Resolver{
		fetcher:   fetcher,
		inspector: inspector,
		cfg:       cfg,
		logger:    logger.Named("resolver"),
	}
}

// Resolve crawls the listing page and classifies the best candidate. An
// unreachable listing returns an error and mutates nothing: relocation is
// opportunistic, never destructive.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	listingURL := req.ListingURL
	if listingURL == "" {
		derived, err := ParentURL(req.SourceURL)
		if err != nil {
			return nil, err
		}
		listingURL = derived
	}

	links, err := listPDFLinks(ctx, r.fetcher, listingURL)
	if err != nil {
		return nil, fmt.Errorf("listing page unreachable: %w", err)
	}

	// The dead URL itself is not a candidate.
	candidates := links[:0]
	for _, link := range links {
		if link != req.SourceURL {
			candidates = append(candidates, link)
		}
	}
	if len(candidates) == 0 {
		return &Resolution{Status: StatusNotFound, Reason: "no candidate links on listing page"}, nil
	}

	// Form-number token in the candidate filename is the strongest signal
	// and needs no download.
	if req.FormNumber != "" {
		token := normalizeToken(req.FormNumber)
		for _, link := range candidates {
			if strings.Contains(filename(link), token) {
				r.logger.Info("resolved by form number", "url", link, "form_number", req.FormNumber)
				return &Resolution{
					Status:     StatusSameForm,
					URL:        link,
					FormNumber: req.FormNumber,
					Reason:     fmt.Sprintf("form number match: %s", req.FormNumber),
				}, nil
			}
		}
	}

	return r.resolveBySimilarity(ctx, req, candidates)
}

// resolveBySimilarity inspects the most promising candidates and classifies
// the best text-similarity score against the configured thresholds.
func (r *Resolver) resolveBySimilarity(ctx context.Context, req Request, candidates []string) (*Resolution, error) {
	if r.inspector == nil || req.PriorText == "" {
		return &Resolution{Status: StatusNotFound, Reason: "no form-number match and no prior text to compare"}, nil
	}

	// Rank by filename affinity so the download budget goes to the most
	// plausible candidates first.
	sourceName := filename(req.SourceURL)
	ranked := make([]string, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return diff.Similarity(sourceName, filename(ranked[i])) > diff.Similarity(sourceName, filename(ranked[j]))
	})
	if len(ranked) > r.cfg.MaxCandidates {
		ranked = ranked[:r.cfg.MaxCandidates]
	}

	var best *Resolution
	for _, link := range ranked {
		profile, err := r.inspector.Inspect(ctx, link)
		if err != nil {
			r.logger.Debug("candidate inspection failed", "url", link, "error", err)
			continue
		}
		score := diff.Similarity(req.PriorText, profile.Text)
		r.logger.Debug("candidate scored", "url", link, "similarity", score)
		if best == nil || score > best.Similarity {
			best = &Resolution{
				URL:        link,
				Similarity: score,
				Title:      profile.Title,
				FormNumber: profile.FormNumber,
			}
		}
	}
	if best == nil {
		return &Resolution{Status: StatusNotFound, Reason: "no candidate could be inspected"}, nil
	}

	switch {
	case best.Similarity >= r.cfg.HighSimilarity:
		if req.FormNumber != "" && best.FormNumber != "" &&
			normalizeToken(best.FormNumber) == normalizeToken(req.FormNumber) {
			best.Status = StatusSameForm
			best.Reason = fmt.Sprintf("form number %s with %.0f%% text similarity", best.FormNumber, best.Similarity)
		} else {
			best.Status = StatusRelocated
			best.Reason = fmt.Sprintf("high text similarity: %.0f%%", best.Similarity)
		}
	case best.Similarity >= r.cfg.LowSimilarity && titleDiffers(req.Title, best.Title):
		best.Status = StatusNameChange
		best.Reason = fmt.Sprintf("moderate similarity (%.0f%%) with changed title", best.Similarity)
	default:
		return &Resolution{
			Status:     StatusNotFound,
			Similarity: best.Similarity,
			Reason:     fmt.Sprintf("best candidate at %.0f%% similarity, below threshold", best.Similarity),
		}, nil
	}
	r.logger.Info("resolved by similarity", "url", best.URL, "status", best.Status, "similarity", best.Similarity)
	return best, nil
}

func normalizeToken(token string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, strings.ToLower(token))
}

func titleDiffers(oldTitle, newTitle string) bool {
	if oldTitle == "" || newTitle == "" {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(oldTitle), strings.TrimSpace(newTitle))
}
