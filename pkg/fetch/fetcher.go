// Package fetch retrieves monitored documents and decides, per monitoring
// pass, how much work a source needs: a metadata probe, a quick hash of the
// leading bytes, or a full download.
package fetch

import (
	"context"
	"fmt"
	"time"
)

// Validators are the response headers usable as weak change evidence on the
// next pass.
type Validators struct {
	ETag          string
	LastModified  *time.Time
	ContentLength *int64
}

// Empty reports whether no validator was present on the response.
func (v Validators) Empty() bool {
	return v.ETag == "" && v.LastModified == nil && v.ContentLength == nil
}

// Response is the outcome of one retrieval.
type Response struct {
	StatusCode int
	Body       []byte
	Validators Validators
}

// Fetcher retrieves documents over the network. Implementations must report
// HTTP-like status distinctly from transport errors and honor the context
// deadline.
type Fetcher interface {
	// Fetch retrieves the full body at url.
	Fetch(ctx context.Context, url string) (*Response, error)

	// FetchHead retrieves headers only.
	FetchHead(ctx context.Context, url string) (*Response, error)

	// FetchRange retrieves at most maxBytes leading bytes, via a ranged
	// request when the server supports one.
	FetchRange(ctx context.Context, url string, maxBytes int) (*Response, error)
}

// FetchError reports a failed retrieval: transport errors carry a zero
// status code, HTTP failures the response status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the failure means the document is gone from this
// URL, which routes the source to identity resolution.
func (e *FetchError) NotFound() bool {
	return e.StatusCode == 404 || e.StatusCode == 410
}
