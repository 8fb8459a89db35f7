package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	body := "%PDF-1.4 fake document body"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Tue, 15 Nov 2024 12:45:26 GMT")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	resp, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, body, string(resp.Body))
	assert.Equal(t, `"abc123"`, resp.Validators.ETag)
	require.NotNil(t, resp.Validators.LastModified)
	assert.Equal(t, 2024, resp.Validators.LastModified.Year())
	require.NotNil(t, resp.Validators.ContentLength)
	assert.Equal(t, int64(len(body)), *resp.Validators.ContentLength)
}

func TestHTTPFetcher_FetchHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("ETag", `"head-etag"`)
		w.Header().Set("Content-Length", "2048")
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	resp, err := f.FetchHead(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Empty(t, resp.Body)
	assert.Equal(t, `"head-etag"`, resp.Validators.ETag)
	require.NotNil(t, resp.Validators.ContentLength)
	assert.Equal(t, int64(2048), *resp.Validators.ContentLength)
}

func TestHTTPFetcher_FetchRange_Supported(t *testing.T) {
	full := strings.Repeat("x", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-99", r.Header.Get("Range"))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-99/%d", len(full)))
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, full[:100])
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	resp, err := f.FetchRange(context.Background(), server.URL, 100)
	require.NoError(t, err)

	assert.Len(t, resp.Body, 100)
	// The total size comes from Content-Range, not the partial body.
	require.NotNil(t, resp.Validators.ContentLength)
	assert.Equal(t, int64(1000), *resp.Validators.ContentLength)
}

func TestHTTPFetcher_FetchRange_Ignored(t *testing.T) {
	full := strings.Repeat("y", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, full)
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	resp, err := f.FetchRange(context.Background(), server.URL, 100)
	require.NoError(t, err)

	// Server sent 200 with the whole body; the fetcher truncates.
	assert.Len(t, resp.Body, 100)
}

func TestHTTPFetcher_FetchRange_NotSatisfiable(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		fmt.Fprint(w, "tiny")
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	resp, err := f.FetchRange(context.Background(), server.URL, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "tiny", string(resp.Body))
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.True(t, fetchErr.NotFound())
}

func TestHTTPFetcher_Gone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	_, err := f.Fetch(context.Background(), server.URL)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.NotFound())
}

func TestHTTPFetcher_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{})
	_, err := f.Fetch(context.Background(), server.URL)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.False(t, fetchErr.NotFound())
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	f := NewHTTPFetcher(HTTPFetcherConfig{})
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.Error(t, errors.Unwrap(fetchErr))
}
