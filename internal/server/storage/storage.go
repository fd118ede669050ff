// Package storage defines the contract between the upload orchestrator and
// a remote storage backend, plus the chunk-size policy and the payload
// checks shared by every backend.
package storage

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
)

const (
	// ChunkBase is the unit chunk sizes are expressed in. Graph requires
	// session chunks to be multiples of 320 KiB.
	ChunkBase = 320 << 10

	DefaultChunkMultiplier = 10
	MaxChunkMultiplier     = (100 << 20) / ChunkBase

	// DefaultDirectUploadLimit is the largest payload sent in a single
	// request instead of through an upload session.
	DefaultDirectUploadLimit = 4 << 20
)

// Item is the backend's view of a stored file.
type Item struct {
	ID          string
	Name        string
	Size        int64
	MimeType    string
	ETag        string
	DownloadURL string
	Modified    time.Time
}

// ChunkResult reports the outcome of one chunk PUT. NextExpectedRanges is
// set while Done is false; Item is set once Done is true.
type ChunkResult struct {
	Done               bool
	NextExpectedRanges []string
	Item               *Item
}

// Backend is a remote store that supports resumable upload sessions.
// Paths are given as a base directory plus a path relative to it; the
// backend joins and encodes them.
type Backend interface {
	Name() string

	// ResolveChunkSize turns a requested multiplier (nil for the default)
	// into the chunk size clients must use for this backend.
	ResolveChunkSize(multiplier *int) int64

	GetMetadata(ctx context.Context, basePath, relPath string) (*Item, error)
	UploadDirect(ctx context.Context, basePath, relPath string, data []byte) (*Item, error)
	OpenSession(ctx context.Context, basePath, relPath string, chunkSize int64) (string, error)
	UploadChunk(ctx context.Context, sessionURL string, data []byte, r contentrange.Range) (*ChunkResult, error)
	DeleteItem(ctx context.Context, basePath, relPath string) error
	DownloadURL(ctx context.Context, basePath, relPath string) (string, error)
}

// ClampChunkSize resolves a chunk multiplier: nil means
// DefaultChunkMultiplier, values are clamped to [minMultiplier,
// MaxChunkMultiplier], and the result is multiplier*ChunkBase bytes.
func ClampChunkSize(multiplier *int, minMultiplier int) int64 {
	m := DefaultChunkMultiplier
	if multiplier != nil {
		m = *multiplier
	}
	if minMultiplier < 1 {
		minMultiplier = 1
	}
	if m < minMultiplier {
		m = minMultiplier
	}
	if m > MaxChunkMultiplier {
		m = MaxChunkMultiplier
	}
	return int64(m) * ChunkBase
}
