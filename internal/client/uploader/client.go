// Package uploader is the client side of the resumable upload protocol. It
// opens a session, walks the file chunk by chunk following the server's
// nextExpectedRanges, and wraps the cache and grant endpoints.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/netx"
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
	"github.com/hashicorp/go-retryablehttp"
)

type Config struct {
	ServerURL string
	Token     string
	Timeout   time.Duration

	HTTPClient *http.Client

	// Progress, if set, is called after every accepted chunk.
	Progress func(sent, total int64)
}

type Client struct {
	base     string
	token    string
	api      *retryablehttp.Client
	chunks   *http.Client
	policy   retryx.Policy
	progress func(sent, total int64)
	logger   logging.Logger
}

func New(cfg Config, l logging.Logger) (*Client, error) {
	if _, err := netx.JoinURL(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		base:     cfg.ServerURL,
		token:    cfg.Token,
		api:      retryx.NewHTTPClient(retryx.DefaultPolicy(), base),
		chunks:   base,
		policy:   retryx.ChunkPolicy(),
		progress: cfg.Progress,
		logger:   l.With("module", "uploader"),
	}
	c.policy.OnRetry = func(retry int, err error, delay time.Duration) {
		c.logger.Warn(context.Background(), "retrying chunk", "retry", retry, "delay", delay, "error", err)
	}
	return c, nil
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
	op         string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s (%s)", e.op, e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.op, e.StatusCode, e.Message)
}

// Unwrap exposes the status to retryx predicates and the sentinel errors
// to errors.Is.
func (e *APIError) Unwrap() []error {
	errs := []error{retryx.FromStatus(e.op, e.StatusCode, e.Message)}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		errs = append(errs, common.ErrorUnauthorized)
	case http.StatusNotFound:
		errs = append(errs, common.ErrorNotFound)
	}
	return errs
}

func (c *Client) url(segments ...string) (string, error) {
	return netx.JoinURL(c.base, segments...)
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set(common.AuthorizationHeaderName, "Bearer "+c.token)
	}
}

// apiError turns a failed response into an *APIError and closes the body.
func apiError(op string, resp *http.Response) error {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	e := &APIError{StatusCode: resp.StatusCode, op: op}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		e.Message, e.Detail = body.Error, body.Detail
	} else {
		e.Message = strings.TrimSpace(string(raw))
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// call sends a control-plane request through the retrying client and
// decodes the JSON reply into out (which may be nil).
func (c *Client) call(ctx context.Context, op, method string, body any, out any, segments ...string) error {
	u, err := c.url(segments...)
	if err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.api.Do(req)
	if err != nil {
		return retryx.FromTransport(op, err)
	}
	if !netx.IsSuccess(resp.StatusCode) {
		return apiError(op, resp)
	}
	if out == nil {
		_ = resp.Body.Close()
		return nil
	}
	return netx.DecodeJSON(resp, out)
}

// IssueGrant asks the server for a delegated token. It requires the master
// secret.
func (c *Client) IssueGrant(ctx context.Context, subject string, ttl time.Duration) (*Grant, error) {
	req := struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttlSeconds,omitempty"`
	}{Subject: subject, TTLSeconds: int64(ttl / time.Second)}

	var out struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	if err := c.call(ctx, "issue grant", http.MethodPost, req, &out, "api", "grants"); err != nil {
		return nil, err
	}
	return &Grant{Token: out.Token, ExpiresAt: time.UnixMilli(out.ExpiresAt)}, nil
}

// CacheList returns the cache keys that start with prefix.
func (c *Client) CacheList(ctx context.Context, prefix string) ([]string, error) {
	u, err := c.url("api", "cache")
	if err != nil {
		return nil, err
	}
	if prefix != "" {
		u += "?prefix=" + url.QueryEscape(prefix)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	c.authorize(req.Header)

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, retryx.FromTransport("list cache", err)
	}
	if !netx.IsSuccess(resp.StatusCode) {
		return nil, apiError("list cache", resp)
	}
	keys := []string{}
	if err := netx.DecodeJSON(resp, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CacheDelete removes a cache entry.
func (c *Client) CacheDelete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}
	return c.call(ctx, "delete cache entry", http.MethodDelete, nil, nil, "api", "cache", key)
}
