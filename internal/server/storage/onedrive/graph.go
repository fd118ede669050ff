package onedrive

import (
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
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
	"github.com/hashicorp/go-retryablehttp"
)

const invalidTokenCode = "InvalidAuthenticationToken"

type driveItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"eTag"`
	LastModified time.Time `json:"lastModifiedDateTime"`
	File         *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	DownloadURL string `json:"@microsoft.graph.downloadUrl"`
}

func (d *driveItem) item() *storage.Item {
	it := &storage.Item{
		ID:          d.ID,
		Name:        d.Name,
		Size:        d.Size,
		ETag:        d.ETag,
		DownloadURL: d.DownloadURL,
		Modified:    d.LastModified,
	}
	if d.File != nil {
		it.MimeType = d.File.MimeType
	}
	return it
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type request struct {
	op          string
	method      string
	url         string
	body        []byte
	contentType string
}

// itemURL addresses base/rel under the drive root.
func (c *Client) itemURL(base, rel string) string {
	p := storage.EncodePath(base, rel)
	if p == "" {
		return c.rootURL
	}
	return c.rootURL + ":/" + p
}

// do sends an authenticated Graph request and decodes a 2xx body into out.
// A 401 or an InvalidAuthenticationToken error triggers one forced token
// refresh and one more attempt; a second rejection is returned as is.
func (c *Client) do(ctx context.Context, r request, out any) error {
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return err
		}

		status, raw, err := c.send(ctx, r, token)
		if err != nil {
			return err
		}

		if status >= 200 && status < 300 {
			if out != nil && len(raw) > 0 {
				if err := json.Unmarshal(raw, out); err != nil {
					return fmt.Errorf("%s: decode response: %w", r.op, err)
				}
			}
			return nil
		}

		var ge graphError
		_ = json.Unmarshal(raw, &ge)
		msg := strings.TrimSpace(string(raw))

		lastErr = retryx.FromStatus(r.op, status, msg)
		if status == http.StatusNotFound {
			lastErr = fmt.Errorf("%w: %w", common.ErrorNotFound, lastErr)
		}

		if status == http.StatusUnauthorized || ge.Error.Code == invalidTokenCode {
			c.creds.Invalidate(token)
			c.logger.Warn(ctx, "graph rejected access token", "op", r.op, "attempt", attempt)
			if attempt < maxAttempts {
				if _, err := c.creds.Refresh(ctx); err != nil {
					return err
				}
				continue
			}
		}
		return lastErr
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, r request, token string) (int, []byte, error) {
	var body any
	if r.body != nil {
		body = r.body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, retryx.FromTransport(r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, retryx.FromTransport(r.op, err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) GetMetadata(ctx context.Context, basePath, relPath string) (*storage.Item, error) {
	var d driveItem
	err := c.do(ctx, request{
		op:     "get metadata",
		method: http.MethodGet,
		url:    c.itemURL(basePath, relPath),
	}, &d)
	if err != nil {
		return nil, err
	}
	return d.item(), nil
}

func (c *Client) UploadDirect(ctx context.Context, basePath, relPath string, data []byte) (*storage.Item, error) {
	if data == nil {
		data = []byte{}
	}
	var d driveItem
	err := c.do(ctx, request{
		op:          "upload",
		method:      http.MethodPut,
		url:         c.itemURL(basePath, relPath) + ":/content",
		body:        data,
		contentType: "application/octet-stream",
	}, &d)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "uploaded file", "path", storage.JoinPath(basePath, relPath), "size", d.Size)
	return d.item(), nil
}

// OpenSession creates an upload session that replaces any item with the
// same name. The chunk size is not needed by Graph.
func (c *Client) OpenSession(ctx context.Context, basePath, relPath string, _ int64) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"item": map[string]string{"@microsoft.graph.conflictBehavior": "replace"},
	})

	var out struct {
		UploadURL string `json:"uploadUrl"`
	}
	err := c.do(ctx, request{
		op:          "create upload session",
		method:      http.MethodPost,
		url:         c.itemURL(basePath, relPath) + ":/createUploadSession",
		body:        body,
		contentType: "application/json",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.New("create upload session: response has no uploadUrl")
	}
	return out.UploadURL, nil
}

// DeleteItem removes base/rel. A missing item counts as deleted.
func (c *Client) DeleteItem(ctx context.Context, basePath, relPath string) error {
	err := c.do(ctx, request{
		op:     "delete",
		method: http.MethodDelete,
		url:    c.itemURL(basePath, relPath),
	}, nil)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// DownloadURL returns the pre-authenticated download URL of a file.
func (c *Client) DownloadURL(ctx context.Context, basePath, relPath string) (string, error) {
	it, err := c.GetMetadata(ctx, basePath, relPath)
	if err != nil {
		return "", err
	}
	if it.DownloadURL == "" {
		return "", fmt.Errorf("%w: %s has no download url", common.ErrDownloadDeclined, storage.JoinPath(basePath, relPath))
	}
	if c.cfg.DownloadHost == "" {
		return it.DownloadURL, nil
	}
	u, err := url.Parse(it.DownloadURL)
	if err != nil {
		c.logger.Warn(ctx, "cannot rewrite download url", "error", err)
		return it.DownloadURL, nil
	}
	u.Host = c.cfg.DownloadHost
	return u.String(), nil
}

func decodeJSON(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
