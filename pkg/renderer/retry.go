package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryTransport retries requests answered with 500, 502, 503 or 504, and
// requests that failed in transport, with exponential backoff. Other
// statuses are returned immediately. When attempts run out the last response
// is returned as is.
type RetryTransport struct {
	next       http.RoundTripper
	maxRetries uint64
	interval   time.Duration
}

func NewRetryTransport(next http.RoundTripper, maxRetries int, interval time.Duration) *RetryTransport {
	if next == nil {
		next = http.DefaultTransport
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &RetryTransport{
		next:       next,
		maxRetries: uint64(maxRetries),
		interval:   interval,
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (t *RetryTransport) newBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.interval
	policy.MaxElapsedTime = 0
	policy.Reset()

	return policy
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var (
		last    *http.Response
		attempt int
	)

	operation := func() error {
		attemptReq := req

		if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return backoff.Permanent(errors.New("request body cannot be replayed"))
			}

			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}

			attemptReq = req.Clone(req.Context())
			attemptReq.Body = body
		}

		attempt++

		resp, err := t.next.RoundTrip(attemptReq)
		if err != nil {
			last = nil

			return err
		}

		if !retryableStatus(resp.StatusCode) {
			last = resp

			return nil
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if err != nil {
			last = nil

			return err
		}

		resp.Body = io.NopCloser(bytes.NewReader(body))
		last = resp

		return fmt.Errorf("retryable status %d", resp.StatusCode)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), t.maxRetries), req.Context())

	err := backoff.Retry(operation, policy)
	if last != nil {
		return last, nil
	}

	return nil, err
}
