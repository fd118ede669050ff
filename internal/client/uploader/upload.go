package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
	"github.com/dmitrijs2005/gophdrive/internal/filex"
	"github.com/dmitrijs2005/gophdrive/internal/netx"
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
)

// ErrStalled is returned when the server keeps asking for the same offset.
var ErrStalled = errors.New("upload made no progress")

// File is the catalog record the server returns for a finished upload.
type File struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  *string   `json:"mime_type"`
	FolderID  *string   `json:"folder_id"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// Options tune a user upload. Name defaults to the local file name and a
// zero ChunkMultiplier lets the server pick.
type Options struct {
	Name            string
	FolderPath      string
	MimeType        string
	ChunkMultiplier int
}

type session struct {
	ID        string `json:"uploadId"`
	FileSize  int64  `json:"fileSize"`
	ChunkSize int64  `json:"chunkSize"`
	ExpiresAt int64  `json:"expiresAt"`
}

type chunkReply struct {
	Done               bool     `json:"done"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
	FileID             string   `json:"fileId"`
	Key                string   `json:"key"`
	Size               int64    `json:"size"`
	File               *File    `json:"file"`
}

func multiplier(m int) *int {
	if m == 0 {
		return nil
	}
	return &m
}

// Upload sends the file at path as a user-visible file.
func (c *Client) Upload(ctx context.Context, path string, opts Options) (*File, error) {
	f, size, err := filex.OpenRegular(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := opts.Name
	if name == "" {
		name = filepath.Base(path)
	}

	init := struct {
		Filename        string `json:"filename"`
		FileSize        int64  `json:"fileSize"`
		MimeType        string `json:"mimeType,omitempty"`
		FolderPath      string `json:"folderPath,omitempty"`
		ChunkMultiplier *int   `json:"chunkMultiplier,omitempty"`
	}{name, size, opts.MimeType, opts.FolderPath, multiplier(opts.ChunkMultiplier)}

	var s session
	if err := c.call(ctx, "open upload session", http.MethodPost, init, &s, "api", "upload", "init"); err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "upload session opened", "name", name, "size", size, "chunk_size", s.ChunkSize)

	reply, err := c.transfer(ctx, f, size, s, "api", "upload", "chunk")
	if err != nil {
		return nil, err
	}
	if reply.File != nil {
		return reply.File, nil
	}
	return &File{ID: reply.FileID, FileName: name, FileSize: reply.Size}, nil
}

// CachePut stores the file at path under key and returns the stored size.
func (c *Client) CachePut(ctx context.Context, key, path string, chunkMultiplier int) (int64, error) {
	f, size, err := filex.OpenRegular(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	init := struct {
		Key             string `json:"key"`
		FileSize        int64  `json:"fileSize"`
		ChunkMultiplier *int   `json:"chunkMultiplier,omitempty"`
	}{key, size, multiplier(chunkMultiplier)}

	var s session
	if err := c.call(ctx, "open cache session", http.MethodPost, init, &s, "api", "cache", "init"); err != nil {
		return 0, err
	}

	reply, err := c.transfer(ctx, f, size, s, "api", "cache", "chunk")
	if err != nil {
		return 0, err
	}
	return reply.Size, nil
}

// transfer sends chunks until the server reports the upload done. The
// offset of every chunk after the first comes from the server.
func (c *Client) transfer(ctx context.Context, r io.ReaderAt, size int64, s session, segments ...string) (*chunkReply, error) {
	if s.ID == "" || s.ChunkSize <= 0 {
		return nil, fmt.Errorf("server returned an unusable session (chunk size %d)", s.ChunkSize)
	}
	u, err := c.url(segments...)
	if err != nil {
		return nil, err
	}

	var offset int64
	stalls := 0
	for {
		rng := contentrange.For(offset, s.ChunkSize, size)
		data, err := filex.ReadChunk(r, rng.Start, rng.Len())
		if err != nil {
			return nil, err
		}

		reply, err := retryx.DoValue(ctx, c.policy, func(ctx context.Context) (*chunkReply, error) {
			return c.sendChunk(ctx, u, s.ID, data, rng)
		})
		if err != nil {
			return nil, err
		}
		if reply.Done {
			c.report(size, size)
			return reply, nil
		}

		next, err := nextOffset(reply.NextExpectedRanges, size)
		if err != nil {
			return nil, err
		}
		if next <= offset {
			stalls++
			if stalls > c.policy.MaxRetries {
				return nil, fmt.Errorf("%w at byte %d", ErrStalled, offset)
			}
			c.logger.Warn(ctx, "server asked to resend", "offset", offset, "next", next)
		} else {
			stalls = 0
		}
		offset = next
		c.report(offset, size)
	}
}

func (c *Client) sendChunk(ctx context.Context, u, id string, data []byte, rng contentrange.Range) (*chunkReply, error) {
	op := "upload chunk " + rng.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set(common.UploadIDHeaderName, id)
	req.Header.Set(common.ContentRangeHeaderName, rng.String())
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req.Header)

	resp, err := c.chunks.Do(req)
	if err != nil {
		return nil, retryx.FromTransport(op, err)
	}
	if !netx.IsSuccess(resp.StatusCode) {
		return nil, apiError(op, resp)
	}
	var out chunkReply
	if err := netx.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) report(sent, total int64) {
	if c.progress != nil {
		c.progress(sent, total)
	}
}

// nextOffset reads the start of the first "start-" or "start-end" entry.
func nextOffset(ranges []string, size int64) (int64, error) {
	if len(ranges) == 0 {
		return 0, errors.New("server did not report the next expected range")
	}
	first := strings.TrimSpace(ranges[0])
	start, _, ok := strings.Cut(first, "-")
	if !ok {
		return 0, fmt.Errorf("malformed next expected range %q", first)
	}
	n, err := strconv.ParseInt(start, 10, 64)
	if err != nil || n < 0 || n >= size {
		return 0, fmt.Errorf("malformed next expected range %q", first)
	}
	return n, nil
}
