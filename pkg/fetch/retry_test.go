package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestRetry_TransientFailureRecovers(t *testing.T) {
	attempts := 0
	resp, err := retry(context.Background(), fastPolicy(), hclog.NewNullLogger(), func() (*Response, error) {
		attempts++
		if attempts < 3 {
			return nil, &FetchError{URL: "u", StatusCode: 503}
		}
		return &Response{StatusCode: 200, Body: []byte("ok")}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, "ok", string(resp.Body))
}

func TestRetry_ClientErrorIsPermanent(t *testing.T) {
	attempts := 0
	_, err := retry(context.Background(), fastPolicy(), hclog.NewNullLogger(), func() (*Response, error) {
		attempts++
		return nil, &FetchError{URL: "u", StatusCode: 404}
	})
	require.Error(t, err)

	assert.Equal(t, 1, attempts)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.NotFound())
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := retry(context.Background(), fastPolicy(), hclog.NewNullLogger(), func() (*Response, error) {
		attempts++
		return nil, &FetchError{URL: "u", StatusCode: 500}
	})
	require.Error(t, err)

	// Initial attempt plus MaxRetries.
	assert.Equal(t, 4, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry(ctx, fastPolicy(), hclog.NewNullLogger(), func() (*Response, error) {
		return nil, &FetchError{URL: "u", StatusCode: 500}
	})
	require.Error(t, err)
}
