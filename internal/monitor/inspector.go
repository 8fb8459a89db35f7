package monitor

import (
	"context"

	"github.com/formwatch/formwatch/pkg/extract"
	"github.com/formwatch/formwatch/pkg/resolve"
)

// candidateInspector runs resolver candidates through the engine's own fetch
// and extract stack so similarity scoring sees the same text the pipeline
// would store.
type candidateInspector struct {
	engine *Engine
}

func (c *candidateInspector) Inspect(ctx context.Context, url string) (*resolve.CandidateProfile, error) {
	resp, err := c.engine.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	extraction, err := c.engine.pipeline.Extract(ctx, resp.Body)
	if err != nil {
		return nil, err
	}
	text := extraction.FullText()

	profile := &resolve.CandidateProfile{Text: text}
	if identity := c.engine.extractIdentity(ctx, text); identity != nil {
		profile.Title = identity.Title
		profile.FormNumber = identity.FormNumber
	} else {
		profile.FormNumber = extract.FindFormNumber(text)
	}
	return profile, nil
}
