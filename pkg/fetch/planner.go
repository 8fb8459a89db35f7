package fetch

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/formwatch/formwatch/pkg/hashing"
)

// Outcome is the planner's verdict for one source in one cycle.
type Outcome string

const (
	// OutcomeUnchanged means a cheap tier produced positive evidence that
	// the document did not change, so no full download happened.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeFetched means the full body was downloaded and must go through
	// the comparison pipeline.
	OutcomeFetched Outcome = "fetched"
)

// Cached carries what the previous successful fetch left behind: response
// validators and the quick hash of the leading bytes. A zero Cached forces a
// full download, which is how baselines are taken.
type Cached struct {
	Validators Validators
	QuickHash  string
}

// PlanResult is the planner's output. Body, RawHash, and QuickHash are only
// set when Outcome is OutcomeFetched. Validators carry whatever the last
// response exposed, for caching on the source.
type PlanResult struct {
	Outcome    Outcome
	Tier       int
	Body       []byte
	RawHash    string
	QuickHash  string
	Validators Validators
}

// PlannerConfig tunes the tier ladder.
type PlannerConfig struct {
	// QuickHashBytes is the prefix length hashed by the middle tier.
	QuickHashBytes int

	// TrustValidators lets a full header match short-circuit to unchanged.
	// Validators are weak evidence, so this is off unless configured.
	TrustValidators bool

	Retry  RetryPolicy
	Logger hclog.Logger
}

// Planner decides, per source, the cheapest fetch that settles whether the
// document changed. It climbs three tiers: a header probe, a quick hash of
// the leading bytes, and a full download. Each tier either settles the
// question or escalates; only inconclusive evidence escalates, never a
// guessed "unchanged".
type Planner struct {
	fetcher         Fetcher
	quickHashBytes  int
	trustValidators bool
	retryPolicy     RetryPolicy
	logger          hclog.Logger
}

// NewPlanner creates a Planner over the given fetcher.
func NewPlanner(fetcher Fetcher, cfg PlannerConfig) *Planner {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	quickBytes := cfg.QuickHashBytes
	if quickBytes <= 0 {
		quickBytes = 64 * 1024
	}
	retryPolicy := cfg.Retry
	if retryPolicy.MaxRetries == 0 && retryPolicy.InitialBackoff == 0 {
		retryPolicy = DefaultRetryPolicy()
	}
	return &Planner{
		fetcher:         fetcher,
		quickHashBytes:  quickBytes,
		trustValidators: cfg.TrustValidators,
		retryPolicy:     retryPolicy,
		logger:          logger.Named("planner"),
	}
}

// Check runs the tier ladder for url. A *FetchError with NotFound() true
// means the document is gone from this URL and the caller should attempt
// identity resolution.
func (p *Planner) Check(ctx context.Context, url string, cached Cached) (*PlanResult, error) {
	if result, settled, err := p.headerTier(ctx, url, cached); err != nil {
		return nil, err
	} else if settled {
		return result, nil
	}

	if result, settled, err := p.quickHashTier(ctx, url, cached); err != nil {
		return nil, err
	} else if settled {
		return result, nil
	}

	return p.fullFetch(ctx, url)
}

// headerTier probes response headers. It settles only when validator trust
// is enabled and every stored validator matches; a mismatch or a probe
// failure on a HEAD-less server just escalates. A NotFound failure is
// returned so the caller can route to resolution.
func (p *Planner) headerTier(ctx context.Context, url string, cached Cached) (*PlanResult, bool, error) {
	if cached.Validators.Empty() {
		return nil, false, nil
	}

	resp, err := retry(ctx, p.retryPolicy, p.logger, func() (*Response, error) {
		return p.fetcher.FetchHead(ctx, url)
	})
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			if fetchErr.NotFound() {
				return nil, false, err
			}
			// Servers that refuse HEAD are inconclusive, not broken.
			if fetchErr.StatusCode == 405 || fetchErr.StatusCode == 501 {
				p.logger.Debug("HEAD not supported, escalating", "url", url)
				return nil, false, nil
			}
		}
		return nil, false, err
	}

	if p.trustValidators && validatorsMatch(cached.Validators, resp.Validators) {
		p.logger.Debug("validators matched, skipping download", "url", url)
		return &PlanResult{Outcome: OutcomeUnchanged, Tier: 1, Validators: resp.Validators}, true, nil
	}
	return nil, false, nil
}

// quickHashTier hashes the leading bytes and compares against the stored
// quick hash. A match settles unchanged; anything else escalates to the
// full download.
func (p *Planner) quickHashTier(ctx context.Context, url string, cached Cached) (*PlanResult, bool, error) {
	if cached.QuickHash == "" {
		return nil, false, nil
	}

	resp, err := retry(ctx, p.retryPolicy, p.logger, func() (*Response, error) {
		return p.fetcher.FetchRange(ctx, url, p.quickHashBytes)
	})
	if err != nil {
		return nil, false, err
	}

	quick := hashing.HashBytes(resp.Body)
	if quick == cached.QuickHash {
		p.logger.Debug("quick hash matched, skipping download", "url", url)
		return &PlanResult{Outcome: OutcomeUnchanged, Tier: 2, Validators: resp.Validators}, true, nil
	}
	return nil, false, nil
}

// fullFetch downloads the whole document and computes its raw and quick
// hashes for caching.
func (p *Planner) fullFetch(ctx context.Context, url string) (*PlanResult, error) {
	resp, err := retry(ctx, p.retryPolicy, p.logger, func() (*Response, error) {
		return p.fetcher.Fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	prefix := resp.Body
	if len(prefix) > p.quickHashBytes {
		prefix = prefix[:p.quickHashBytes]
	}

	return &PlanResult{
		Outcome:    OutcomeFetched,
		Tier:       3,
		Body:       resp.Body,
		RawHash:    hashing.HashBytes(resp.Body),
		QuickHash:  hashing.HashBytes(prefix),
		Validators: resp.Validators,
	}, nil
}

// validatorsMatch reports whether every validator stored from the previous
// fetch is still present and identical. A validator missing on either side
// is a mismatch: absence is not evidence of anything.
func validatorsMatch(cached, current Validators) bool {
	if cached.ETag != "" {
		if current.ETag != cached.ETag {
			return false
		}
	}
	if cached.LastModified != nil {
		if current.LastModified == nil || !current.LastModified.Equal(*cached.LastModified) {
			return false
		}
	}
	if cached.ContentLength != nil {
		if current.ContentLength == nil || *current.ContentLength != *cached.ContentLength {
			return false
		}
	}
	return true
}
