// Package uploads is the chunk ingest orchestrator. It opens backend upload
// sessions, hands the caller a signed session token, validates and forwards
// every chunk, and records the file in the catalog once the backend reports
// the upload complete.
package uploads

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
	"github.com/dmitrijs2005/gophdrive/internal/server/uploadtoken"
	"github.com/google/uuid"
)

const cacheMimeType = "application/octet-stream"

// Catalog is the subset of the file catalog the orchestrator needs.
type Catalog interface {
	ResolveFolderPath(ctx context.Context, path string) (*string, error)
	Record(ctx context.Context, f *models.File) (*models.File, error)
	Get(ctx context.Context, id string) (*models.File, error)
	ListHidden(ctx context.Context, prefix string) ([]*models.File, error)
	Delete(ctx context.Context, id string) error
}

// Config is the orchestrator's share of the server configuration.
type Config struct {
	// Secret signs session tokens.
	Secret                 []byte
	// SessionMaxAge bounds token lifetime; zero means uploadtoken.MaxSessionAge.
	SessionMaxAge          time.Duration
	// UploadPath and CachePath are the backend folders for user files and cache entries.
	UploadPath             string
	CachePath              string
	// DirectUploadLimit is the largest whole-body upload sent in one request.
	DirectUploadLimit      int64
	// SniffBase64 decodes whole-body payloads that arrive as base64 text.
	SniffBase64            bool
	// DefaultChunkMultiplier applies when the caller does not ask for one.
	DefaultChunkMultiplier int
	// Missing lists backend settings that are not configured. While it is
	// non-empty every operation fails with common.ErrMisconfigured.
	Missing                []string
}

// Service is the chunk ingest orchestrator. It opens backend upload
// sessions, validates each chunk against its session token before the
// backend sees it, and records finished uploads in the catalog.
type Service struct {
	backend  storage.Backend
	catalog  Catalog
	cfg      Config
	observer Observer
	logger   logging.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires the orchestrator. backend may be nil only when
// cfg.Missing explains why; obs may be nil.
func NewService(backend storage.Backend, catalog Catalog, cfg Config, obs Observer, l logging.Logger) *Service {
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = uploadtoken.MaxSessionAge
	}
	if cfg.DirectUploadLimit <= 0 {
		cfg.DirectUploadLimit = storage.DefaultDirectUploadLimit
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Service{
		backend:  backend,
		catalog:  catalog,
		cfg:      cfg,
		observer: obs,
		logger:   l.With("module", "uploads"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// OpenRequest starts a chunked upload. For cache uploads (Hidden) Name is
// the cache key and also becomes the file id.
type OpenRequest struct {
	Name            string
	Size            int64
	MimeType        string
	FolderPath      string
	ChunkMultiplier *int
	Hidden          bool
}

type OpenResult struct {
	Token     string
	Name      string
	Size      int64
	ChunkSize int64
	ExpiresAt time.Time
}

// ChunkOutcome is either an intermediate result with the ranges the backend
// still expects, or the final catalog record.
type ChunkOutcome struct {
	Done               bool
	NextExpectedRanges []string
	File               *models.File
}

func (s *Service) ready() error {
	if len(s.cfg.Missing) > 0 {
		return fmt.Errorf("%w: missing storage settings: %s", common.ErrMisconfigured, strings.Join(s.cfg.Missing, ", "))
	}
	if s.backend == nil || len(s.cfg.Secret) == 0 {
		return common.ErrMisconfigured
	}
	return nil
}

func (s *Service) multiplier(requested *int) *int {
	if requested == nil && s.cfg.DefaultChunkMultiplier > 0 {
		m := s.cfg.DefaultChunkMultiplier
		return &m
	}
	return requested
}

func (s *Service) basePath(hidden bool) string {
	if hidden {
		return s.cfg.CachePath
	}
	return s.cfg.UploadPath
}

// validateName trims n and rejects names that cannot be a single path segment.
func validateName(n string, hidden bool) (string, error) {
	field := "filename"
	if hidden {
		field = "key"
	}
	n = strings.TrimSpace(n)
	switch {
	case n == "":
		return "", fmt.Errorf("%w: %s is required", common.ErrValidation, field)
	case strings.Contains(n, "/"), n == ".", n == "..":
		return "", fmt.Errorf("%w: %s must be a single path segment", common.ErrValidation, field)
	}
	return n, nil
}

// OpenSession opens a backend upload session and returns the session token.
func (s *Service) OpenSession(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	name, err := validateName(req.Name, req.Hidden)
	if err != nil {
		return nil, err
	}
	if req.Size <= 0 {
		return nil, fmt.Errorf("%w: fileSize is invalid", common.ErrValidation)
	}

	chunkSize := s.backend.ResolveChunkSize(s.multiplier(req.ChunkMultiplier))
	fileID := name
	if !req.Hidden {
		fileID = s.newID()
	}

	uploadURL, err := s.backend.OpenSession(ctx, s.basePath(req.Hidden), name, chunkSize)
	s.observer.RecordSession(s.backend.Name(), err)
	if err != nil {
		return nil, fmt.Errorf("open upload session: %w", err)
	}

	d := uploadtoken.Descriptor{
		UploadURL: uploadURL,
		FileSize:  req.Size,
		Filename:  name,
		FileID:    fileID,
		Hidden:    req.Hidden,
		ExpiresAt: s.now().Add(s.cfg.SessionMaxAge),
	}
	if !req.Hidden {
		d.MimeType = strings.TrimSpace(req.MimeType)
		d.FolderPath = strings.TrimSpace(req.FolderPath)
	}
	token, err := uploadtoken.Create(d, s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign upload session: %w", err)
	}

	s.logger.Info(ctx, "upload session opened",
		"file_id", fileID, "size", req.Size, "chunk_size", chunkSize, "hidden", req.Hidden)

	return &OpenResult{
		Token:     token,
		Name:      name,
		Size:      req.Size,
		ChunkSize: chunkSize,
		ExpiresAt: d.ExpiresAt,
	}, nil
}

// SubmitChunk validates one chunk against its session token and forwards
// it to the backend. Every validation happens before the backend is
// contacted: token, then range syntax, then the range total, then the chunk
// length rules, then the body length. The body is read up to one byte past
// the declared range.
func (s *Service) SubmitChunk(ctx context.Context, token, contentRange string, body io.Reader) (*ChunkOutcome, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing %s header", common.ErrValidation, common.UploadIDHeaderName)
	}
	d, ok := uploadtoken.Verify(token, s.cfg.Secret, s.now())
	if !ok {
		return nil, common.ErrTokenInvalid
	}
	r, ok := contentrange.Parse(contentRange)
	if !ok {
		return nil, common.ErrRangeInvalid
	}
	if r.Total != d.FileSize {
		return nil, fmt.Errorf("%w, expected %d, got %d", common.ErrRangeMismatch, d.FileSize, r.Total)
	}
	if err := checkChunkLength(r); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(body, r.Len()+1))
	if err != nil {
		return nil, fmt.Errorf("read chunk body: %w", err)
	}
	if int64(len(data)) != r.Len() {
		got := fmt.Sprint(len(data))
		if int64(len(data)) > r.Len() {
			got = "more"
		}
		return nil, fmt.Errorf("%w, expected %d, got %s", common.ErrChunkSizeMismatch, r.Len(), got)
	}

	start := s.now()
	res, err := s.backend.UploadChunk(ctx, d.UploadURL, data, r)
	s.observer.RecordChunk(s.backend.Name(), s.now().Sub(start), len(data), err)
	if err != nil {
		s.logger.Error(ctx, "chunk upload failed", "file_id", d.FileID, "range", r.String(), "error", err)
		return nil, fmt.Errorf("upload chunk %s: %w", r, err)
	}

	if !res.Done {
		next := res.NextExpectedRanges
		if next == nil {
			next = []string{}
		}
		return &ChunkOutcome{NextExpectedRanges: next}, nil
	}

	f, err := s.record(ctx, d, res.Item)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "upload completed", "file_id", f.ID, "size", f.FileSize)
	return &ChunkOutcome{Done: true, File: f}, nil
}

// record writes the catalog entry for a completed session.
func (s *Service) record(ctx context.Context, d uploadtoken.Descriptor, item *storage.Item) (*models.File, error) {
	f := &models.File{
		ID:       d.FileID,
		FileName: d.Filename,
		FileSize: d.FileSize,
		Hidden:   d.Hidden,
	}
	if item != nil {
		if item.Size > 0 {
			f.FileSize = item.Size
		}
		if item.Name != "" && !d.Hidden {
			f.FileName = item.Name
		}
	}

	switch {
	case d.Hidden:
		f.MimeType = ptr(cacheMimeType)
	case item != nil && item.MimeType != "":
		f.MimeType = ptr(item.MimeType)
	case d.MimeType != "":
		f.MimeType = ptr(d.MimeType)
	}

	if d.FolderPath != "" && !d.Hidden {
		folderID, err := s.catalog.ResolveFolderPath(ctx, d.FolderPath)
		if err != nil {
			return nil, fmt.Errorf("record upload: %w", err)
		}
		f.FolderID = folderID
	}

	stored, err := s.catalog.Record(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return stored, nil
}

func ptr[T any](v T) *T { return &v }

// checkChunkLength enforces the remote storage chunk rules: every chunk but
// the last is a whole number of storage.ChunkBase units, and none exceeds
// storage.MaxChunkMultiplier units.
func checkChunkLength(r contentrange.Range) error {
	const ceiling = storage.MaxChunkMultiplier * storage.ChunkBase
	if r.Len() > ceiling {
		return fmt.Errorf("%w: %d bytes exceeds %d", common.ErrChunkLength, r.Len(), int64(ceiling))
	}
	if !r.Final() && r.Len()%storage.ChunkBase != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", common.ErrChunkLength, r.Len(), storage.ChunkBase)
	}
	return nil
}
