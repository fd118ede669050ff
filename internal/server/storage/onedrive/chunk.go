package onedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// UploadChunk PUTs one byte range to an open upload session. The session
// URL is pre-authorised, so no Authorization header is sent. Network
// failures, 429 and 500-504 are retried under the chunk policy.
func (c *Client) UploadChunk(ctx context.Context, sessionURL string, data []byte, r contentrange.Range) (*storage.ChunkResult, error) {
	if int64(len(data)) != r.Len() {
		return nil, fmt.Errorf("upload chunk %s: have %d bytes", r, len(data))
	}
	return retryx.DoValue(ctx, c.chunkPolicy, func(ctx context.Context) (*storage.ChunkResult, error) {
		return c.putChunk(ctx, sessionURL, data, r)
	})
}

func (c *Client) putChunk(ctx context.Context, sessionURL string, data []byte, r contentrange.Range) (*storage.ChunkResult, error) {
	op := "upload chunk " + r.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Range", r.String())
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.chunks.Do(req)
	if err != nil {
		return nil, retryx.FromTransport(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryx.FromTransport(op, err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		var out struct {
			NextExpectedRanges []string `json:"nextExpectedRanges"`
		}
		if err := decodeJSON(raw, &out); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", op, err)
		}
		return &storage.ChunkResult{NextExpectedRanges: out.NextExpectedRanges}, nil
	case http.StatusOK, http.StatusCreated:
		var d driveItem
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", op, err)
		}
		c.logger.Info(ctx, "upload session completed", "name", d.Name, "size", d.Size)
		return &storage.ChunkResult{Done: true, Item: d.item()}, nil
	default:
		return nil, retryx.FromStatus(op, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}
