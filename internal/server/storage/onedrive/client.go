// Package onedrive is a storage backend for a Microsoft Graph drive. It
// authenticates with OAuth2 client credentials, addresses items by path
// under a user's drive root and uploads large files through resumable
// upload sessions.
package onedrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultOAuthHost = "https://login.microsoftonline.com"
	DefaultAPIHost   = "https://graph.microsoft.com"
)

// Config holds the app registration and drive owner used for every Graph
// call. The four identity fields are required; see Missing.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	UserEmail    string

	// OAuthHost and APIHost default to the public Microsoft endpoints.
	OAuthHost string
	APIHost   string

	// DownloadHost, if set, replaces the host of download URLs.
	DownloadHost string

	HTTPClient *http.Client

	// OnRetry is told about every retried backend call.
	OnRetry func(op string, retry int, err error)
}

// Missing lists the required settings that are empty.
func (c Config) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"ONEDRIVE_CLIENT_ID", c.ClientID},
		{"ONEDRIVE_CLIENT_SECRET", c.ClientSecret},
		{"ONEDRIVE_TENANT_ID", c.TenantID},
		{"ONEDRIVE_USER_EMAIL", c.UserEmail},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Client is a storage.Backend over the drive of a single user. Control
// calls go through a retrying HTTP client with a shared app-only token,
// and chunk PUTs go straight to the pre-authenticated session URL.
type Client struct {
	cfg      Config
	rootURL  string
	tokenURL string

	api    *retryablehttp.Client
	chunks *http.Client
	creds  *credentials

	chunkPolicy retryx.Policy
	logger      logging.Logger
	now         func() time.Time
}

var _ storage.Backend = (*Client)(nil)

// New validates cfg and builds a Client. It returns common.ErrMisconfigured
// naming every missing setting. No network call is made until first use.
func New(cfg Config, l logging.Logger) (*Client, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", common.ErrMisconfigured, strings.Join(missing, ", "))
	}
	if cfg.OAuthHost == "" {
		cfg.OAuthHost = DefaultOAuthHost
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	c := &Client{
		cfg:      cfg,
		rootURL:  fmt.Sprintf("%s/v1.0/users/%s/drive/root", strings.TrimRight(cfg.APIHost, "/"), url.PathEscape(cfg.UserEmail)),
		tokenURL: fmt.Sprintf("%s/%s/oauth2/token", strings.TrimRight(cfg.OAuthHost, "/"), url.PathEscape(cfg.TenantID)),
		chunks:   base,
		logger:   l.With("module", "onedrive"),
		now:      time.Now,
	}

	apiPolicy := retryx.DefaultPolicy()
	c.api = retryx.NewHTTPClient(apiPolicy, base)
	c.api.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			c.logger.Debug(req.Context(), "retrying graph request", "method", req.Method, "attempt", attempt)
			c.notifyRetry("graph "+req.Method, attempt, nil)
		}
	}

	c.chunkPolicy = retryx.ChunkPolicy()
	c.chunkPolicy.OnRetry = func(retry int, err error, delay time.Duration) {
		c.logger.Warn(context.Background(), "retrying chunk upload", "retry", retry, "delay", delay, "error", err)
		c.notifyRetry("upload chunk", retry, err)
	}

	c.creds = newCredentials(c.exchange, func() time.Time { return c.now() })
	return c, nil
}

func (c *Client) Name() string { return "onedrive" }

// ResolveChunkSize clamps the multiplier to [1, 320] units of 320 KiB.
func (c *Client) ResolveChunkSize(multiplier *int) int64 {
	return storage.ClampChunkSize(multiplier, 1)
}

// Authenticate performs a client-credentials exchange and caches the token.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.creds.Refresh(ctx)
	return err
}

func (c *Client) exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("resource", DefaultAPIHost+"/")
	form.Set("scope", DefaultAPIHost+"/.default")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", common.ErrAuthentication, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.api.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", common.ErrAuthentication, retryx.FromTransport("token exchange", err))
	}
	defer resp.Body.Close()

	var tr tokenResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", common.ErrAuthentication, retryx.FromTransport("token exchange", err))
	}
	_ = decodeJSON(raw, &tr)

	if resp.StatusCode >= 300 {
		msg := tr.ErrorDescription
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", 0, fmt.Errorf("%w: %w", common.ErrAuthentication, retryx.FromStatus("token exchange", resp.StatusCode, msg))
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: access token is empty", common.ErrAuthentication)
	}

	c.logger.Info(ctx, "obtained graph access token", "expires_in", tr.lifetime())
	return tr.AccessToken, tr.lifetime(), nil
}

func (c *Client) notifyRetry(op string, retry int, err error) {
	if c.cfg.OnRetry != nil {
		c.cfg.OnRetry(op, retry, err)
	}
}

func isNotFound(err error) bool {
	return retryx.StatusOf(err) == http.StatusNotFound || errors.Is(err, common.ErrorNotFound)
}
