package retryx

import (
	"context"
	"math"
	"time"
)

// Policy describes how many times an operation is retried and how long to
// wait in between. The n-th retry waits InitialDelay*Factor^(n-1), capped at
// MaxDelay when MaxDelay is positive.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64

	// RetryIf decides whether a failure is worth another attempt. Nil
	// retries every error.
	RetryIf func(error) bool

	// OnRetry, if set, is called before each sleep with the 1-based retry
	// number.
	OnRetry func(retry int, err error, delay time.Duration)
}

// DefaultPolicy: 3 retries starting at 200ms, doubling, capped at 5s, on
// network errors and 5xx responses.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2,
		RetryIf:      RetryTransient,
	}
}

// ChunkPolicy is used for chunk transfers: 3 retries starting at 1s,
// doubling, on network errors, 429 and 500-504.
func ChunkPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Factor:       2,
		RetryIf:      RetryThrottledOrTransient,
	}
}

// Delay returns the wait before the given 1-based retry.
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}
	d := float64(p.InitialDelay) * math.Pow(factor, float64(retry-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) shouldRetry(err error) bool {
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs op until it succeeds, the policy gives up, or ctx is done. When
// retries are exhausted or the condition rejects the error, the last error
// is returned unchanged. Cancellation during a wait returns ctx.Err().
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.MaxRetries || ctx.Err() != nil || !p.shouldRetry(err) {
			return v, err
		}

		delay := p.Delay(attempt + 1)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
	}
}
