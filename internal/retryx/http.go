package retryx

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient returns a retryablehttp client that follows p: the same
// retry count, delay schedule and retry condition. Responses are returned
// to the caller even after the last attempt so that status handling stays
// in one place.
func NewHTTPClient(p Policy, base *http.Client) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	if base != nil {
		c.HTTPClient = base
	}
	c.Logger = nil
	c.RetryMax = p.MaxRetries
	c.RetryWaitMin = p.InitialDelay
	c.RetryWaitMax = p.MaxDelay
	c.CheckRetry = CheckRetry(p)
	c.Backoff = Backoff(p)
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// CheckRetry adapts the policy's condition to retryablehttp.
func CheckRetry(p Policy) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return p.shouldRetry(FromTransport("http", err)), nil
		}
		if resp.StatusCode < 400 {
			return false, nil
		}
		return p.shouldRetry(FromStatus("http", resp.StatusCode, "")), nil
	}
}

// Backoff adapts the policy's delay schedule to retryablehttp, whose
// attemptNum is 0-based.
func Backoff(p Policy) retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return p.Delay(attemptNum + 1)
	}
}

// ResponseMessage reads at most 4 KiB of a failed response body for error
// messages.
func ResponseMessage(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return strings.TrimSpace(string(b))
}
