package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryBackOff returns the retry policy applied to release server requests.
// Variable so tests can substitute a quick policy.
var retryBackOff = func(ctx context.Context) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     500 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	return backoff.WithMaxRetries(backoff.WithContext(b, ctx), 4)
}

// TryRequest performs a GET request, retrying transient failures with
// exponential backoff until the retry budget is exhausted. Server errors are
// treated as transient, any other non-200 status is final.
func TryRequest(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(errors.New("unable to create http request: " + err.Error()))
		}

		r, err := client.Do(req)
		if err != nil {
			return err
		}

		if r.StatusCode >= http.StatusInternalServerError {
			_ = r.Body.Close()

			return errors.New("unexpected HTTP status: " + r.Status)
		}

		if r.StatusCode != http.StatusOK {
			_ = r.Body.Close()

			return backoff.Permanent(errors.New("unexpected HTTP status: " + r.Status))
		}

		resp = r

		return nil
	}

	err := backoff.Retry(op, retryBackOff(ctx))
	if err != nil {
		return nil, err
	}

	return resp, nil
}
