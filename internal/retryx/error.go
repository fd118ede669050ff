package retryx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed remote call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindRateLimited
	KindServer
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Error is a tagged failure of a remote call. StatusCode is zero for
// transport-level failures.
type Error struct {
	Kind       Kind
	StatusCode int
	Op         string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		if e.Message == "" {
			return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
		}
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status to a kind. 2xx/3xx map to KindUnknown.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}

// FromStatus builds the error for a non-success HTTP response.
func FromStatus(op string, status int, message string) *Error {
	return &Error{Kind: KindForStatus(status), StatusCode: status, Op: op, Message: message}
}

// FromTransport wraps a failure that happened before any response arrived.
func FromTransport(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// RetryTransient retries network failures and any 5xx. It is the default
// condition for control-plane calls.
func RetryTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// RetryThrottledOrTransient retries network failures, 429 and 500-504.
func RetryThrottledOrTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimited:
		return true
	case KindServer:
		s := StatusOf(err)
		return s >= 500 && s <= 504
	default:
		return false
	}
}
