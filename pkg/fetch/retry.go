package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// RetryPolicy bounds in-cycle retries of a single fetch tier. Cross-cycle
// retries are not modeled here; a failed source simply waits for the next
// scheduled cycle.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// retry runs op with exponential backoff under the policy. Client-side
// HTTP failures (4xx) are permanent: a 404 will not heal within a cycle,
// and retrying it only delays resolution.
func retry(ctx context.Context, policy RetryPolicy, log hclog.Logger, op func() (*Response, error)) (*Response, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialBackoff
	expo.MaxInterval = policy.MaxBackoff

	var resp *Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var opErr error
		resp, opErr = op()
		if opErr == nil {
			return nil
		}

		var fetchErr *FetchError
		if errors.As(opErr, &fetchErr) && fetchErr.StatusCode >= 400 && fetchErr.StatusCode < 500 {
			return backoff.Permanent(opErr)
		}
		log.Debug("fetch attempt failed, backing off", "attempt", attempt, "error", opErr)
		return opErr
	}, backoff.WithContext(backoff.WithMaxRetries(expo, uint64(policy.MaxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
