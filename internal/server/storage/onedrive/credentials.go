package onedrive

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenLifetime = 3600 * time.Second
	expiryMargin         = 30 * time.Second
)

// fetchFunc performs the client-credentials exchange.
type fetchFunc func(ctx context.Context) (token string, lifetime time.Duration, err error)

// credentials caches the access token of one Client. Concurrent callers
// that find it missing or expired share a single exchange.
type credentials struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
	fetch fetchFunc
	now   func() time.Time
}

func newCredentials(fetch fetchFunc, now func() time.Time) *credentials {
	return &credentials{fetch: fetch, now: now}
}

func (c *credentials) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Token returns a valid access token, exchanging credentials if needed.
func (c *credentials) Token(ctx context.Context) (string, error) {
	if t, ok := c.cached(); ok {
		return t, nil
	}
	return c.refresh(ctx, false)
}

// Refresh forces a new exchange.
func (c *credentials) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx, true)
}

// refresh runs the exchange detached from ctx so that it outlives any one
// caller; a caller whose ctx ends stops waiting and gets ctx.Err().
func (c *credentials) refresh(ctx context.Context, force bool) (string, error) {
	key := "token"
	if force {
		key = "force"
	}
	ch := c.group.DoChan(key, func() (any, error) {
		if !force {
			if t, ok := c.cached(); ok {
				return t, nil
			}
		}
		issuedAt := c.now()
		token, lifetime, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = token
		c.expiresAt = issuedAt.Add(lifetime - expiryMargin)
		c.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token if it is still the given stale one, so
// a rejected token is not handed out again.
func (c *credentials) Invalidate(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == stale {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

// lifetime reads expires_in, which the v1 token endpoint sends as a string
// and v2 as a number.
type lifetime time.Duration

func (l *lifetime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		*l = lifetime(defaultTokenLifetime)
		return nil
	}
	*l = lifetime(time.Duration(n * float64(time.Second)))
	return nil
}

type tokenResponse struct {
	TokenType        string   `json:"token_type"`
	AccessToken      string   `json:"access_token"`
	ExpiresIn        lifetime `json:"expires_in"`
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description"`
}

func (r *tokenResponse) lifetime() time.Duration {
	if r.ExpiresIn <= 0 {
		return defaultTokenLifetime
	}
	return time.Duration(r.ExpiresIn)
}

var _ json.Unmarshaler = (*lifetime)(nil)
