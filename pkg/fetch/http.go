package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-hclog"
)

// HTTPFetcher is the plain HTTP implementation of Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	logger    hclog.Logger
}

// HTTPFetcherConfig holds configuration for HTTPFetcher.
type HTTPFetcherConfig struct {
	Client    *http.Client
	UserAgent string
	Logger    hclog.Logger
}

// NewHTTPFetcher creates a fetcher backed by net/http.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "formwatch/1.0"
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
		logger:    logger.Named("fetcher"),
	}
}

// Fetch retrieves the full body at url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, http.MethodGet, url, "", 0)
}

// FetchHead retrieves headers only.
func (f *HTTPFetcher) FetchHead(ctx context.Context, url string) (*Response, error) {
	return f.do(ctx, http.MethodHead, url, "", 0)
}

// FetchRange retrieves at most maxBytes leading bytes. Servers that ignore
// the Range header are handled by truncating the streamed body, so callers
// always get at most maxBytes either way.
func (f *HTTPFetcher) FetchRange(ctx context.Context, url string, maxBytes int) (*Response, error) {
	rangeHeader := fmt.Sprintf("bytes=0-%d", maxBytes-1)
	return f.do(ctx, http.MethodGet, url, rangeHeader, maxBytes)
}

func (f *HTTPFetcher) do(ctx context.Context, method, url, rangeHeader string, maxBytes int) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,*/*")
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	// 416 from servers that reject ranges on small files: retry plain.
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && rangeHeader != "" {
		f.logger.Debug("range request rejected, retrying without range", "url", url)
		io.Copy(io.Discard, resp.Body)
		return f.do(ctx, method, url, "", maxBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	var body []byte
	if method != http.MethodHead {
		reader := io.Reader(resp.Body)
		if maxBytes > 0 {
			reader = io.LimitReader(resp.Body, int64(maxBytes))
		}
		body, err = io.ReadAll(reader)
		if err != nil {
			return nil, &FetchError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Validators: parseValidators(resp),
	}, nil
}

func parseValidators(resp *http.Response) Validators {
	v := Validators{ETag: resp.Header.Get("ETag")}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if parsed, err := dateparse.ParseAny(lm); err == nil {
			v.LastModified = &parsed
		}
	}

	// For ranged responses Content-Range carries the full size;
	// Content-Length only covers the partial body.
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		var start, end, total int64
		if _, err := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); err == nil {
			v.ContentLength = &total
			return v
		}
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" && resp.StatusCode != http.StatusPartialContent {
		if parsed, err := strconv.ParseInt(cl, 10, 64); err == nil {
			v.ContentLength = &parsed
		}
	}
	return v
}
