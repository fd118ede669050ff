package retryx

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleeps replaces the package sleep with one that records delays and
// returns immediately.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var got []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &got
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	delays := recordSleeps(t)
	p := Policy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2}

	calls := 0
	v, err := DoValue(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
}

func TestDo_ExhaustsAndReturnsLastError(t *testing.T) {
	delays := recordSleeps(t)
	p := Policy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond, Factor: 2}

	calls := 0
	var last error
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		last = errors.New("attempt failed")
		return last
	})

	assert.Equal(t, 3, calls, "maxRetries+1 attempts")
	assert.Same(t, last, err)
	assert.Len(t, *delays, 2)
}

func TestDo_ConditionStopsImmediately(t *testing.T) {
	delays := recordSleeps(t)
	p := ChunkPolicy()

	calls := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return FromStatus("put", http.StatusBadRequest, "bad range")
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Empty(t, *delays)
}

func TestDo_DelayCappedAtMax(t *testing.T) {
	delays := recordSleeps(t)
	p := Policy{MaxRetries: 4, InitialDelay: time.Second, MaxDelay: 3 * time.Second, Factor: 2}

	_ = Do(context.Background(), p, func(ctx context.Context) error { return errors.New("x") })

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, *delays)
}

func TestDo_CanceledContextStopsRetrying(t *testing.T) {
	p := Policy{MaxRetries: 5, InitialDelay: time.Hour, Factor: 2}
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("down")
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_OnRetryHook(t *testing.T) {
	recordSleeps(t)
	var retries []int
	p := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, Factor: 2,
		OnRetry: func(retry int, err error, delay time.Duration) { retries = append(retries, retry) }}

	_ = Do(context.Background(), p, func(ctx context.Context) error { return errors.New("x") })

	assert.Equal(t, []int{1, 2}, retries)
}

func TestPolicy_Delay(t *testing.T) {
	p := ChunkPolicy()
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, time.Second, p.Delay(0))
}

func TestRetryConditions(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		chunk     bool
	}{
		{"network", FromTransport("put", errors.New("reset")), true, true},
		{"429", FromStatus("put", 429, ""), false, true},
		{"500", FromStatus("put", 500, ""), true, true},
		{"504", FromStatus("put", 504, ""), true, true},
		{"507", FromStatus("put", 507, ""), true, false},
		{"416", FromStatus("put", 416, ""), false, false},
		{"untagged", errors.New("plain"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, RetryTransient(tt.err))
			assert.Equal(t, tt.chunk, RetryThrottledOrTransient(tt.err))
		})
	}
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "upload chunk: HTTP 416: bad range", FromStatus("upload chunk", 416, "bad range").Error())
	assert.Equal(t, "token: HTTP 503", FromStatus("token", 503, "").Error())

	inner := errors.New("dial tcp: refused")
	e := FromTransport("token", inner)
	assert.Equal(t, "token: dial tcp: refused", e.Error())
	assert.ErrorIs(t, e, inner)
	assert.Equal(t, KindNetwork, KindOf(e))
	assert.Equal(t, "rate_limited", KindRateLimited.String())
}
