package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
	"github.com/dmitrijs2005/gophdrive/internal/server/uploadtoken"
)

// WholeRequest uploads a complete body in one call. Size is the declared
// body length and must be known up front.
type WholeRequest struct {
	Name       string
	Size       int64
	MimeType   string
	FolderPath string
	Hidden     bool
	Body       io.Reader
}

// PutWhole buffers the body, sends it directly when it fits under the
// direct upload limit and through a backend session otherwise, then records
// it. Base64 sniffing only applies to bodies that take the direct path.
func (s *Service) PutWhole(ctx context.Context, req WholeRequest) (*models.File, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	name, err := validateName(req.Name, req.Hidden)
	if err != nil {
		return nil, err
	}
	if req.Body == nil || req.Size <= 0 {
		return nil, fmt.Errorf("%w: request body is empty or has no length", common.ErrValidation)
	}

	sniff := s.cfg.SniffBase64 && req.Size <= s.cfg.DirectUploadLimit
	data, err := storage.ReadPayload(req.Body, req.Size, sniff)
	if err != nil {
		return nil, err
	}

	base := s.basePath(req.Hidden)
	start := s.now()
	var item *storage.Item
	if int64(len(data)) <= s.cfg.DirectUploadLimit {
		item, err = s.backend.UploadDirect(ctx, base, name, data)
	} else {
		item, err = s.uploadInSession(ctx, base, name, data)
	}
	s.observer.RecordWhole(s.backend.Name(), s.now().Sub(start), len(data), err)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	d := uploadtoken.Descriptor{
		FileSize: int64(len(data)),
		Filename: name,
		FileID:   name,
		Hidden:   req.Hidden,
	}
	if !req.Hidden {
		d.FileID = s.newID()
		d.MimeType = strings.TrimSpace(req.MimeType)
		d.FolderPath = strings.TrimSpace(req.FolderPath)
	}
	return s.record(ctx, d, item)
}

// uploadInSession sends data through a fresh backend session in
// sequential chunks of the default size.
func (s *Service) uploadInSession(ctx context.Context, base, name string, data []byte) (*storage.Item, error) {
	chunkSize := s.backend.ResolveChunkSize(s.multiplier(nil))
	sessionURL, err := s.backend.OpenSession(ctx, base, name, chunkSize)
	s.observer.RecordSession(s.backend.Name(), err)
	if err != nil {
		return nil, err
	}

	total := int64(len(data))
	for off := int64(0); off < total; off += chunkSize {
		n := min(chunkSize, total-off)
		res, err := s.backend.UploadChunk(ctx, sessionURL, data[off:off+n], contentrange.For(off, n, total))
		if err != nil {
			return nil, err
		}
		if res.Done {
			return res.Item, nil
		}
	}
	return nil, errors.New("backend did not complete the upload session")
}

// DownloadURL returns a short-lived backend URL for the user file with id.
// Cache entries are only reachable through CacheURL.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	f, err := s.catalog.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if f.Hidden {
		return "", common.ErrorNotFound
	}
	return s.backend.DownloadURL(ctx, s.cfg.UploadPath, f.FileName)
}

// CacheURL is DownloadURL restricted to cache entries.
func (s *Service) CacheURL(ctx context.Context, key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	f, err := s.catalog.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !f.Hidden {
		return "", common.ErrorNotFound
	}
	return s.backend.DownloadURL(ctx, s.cfg.CachePath, key)
}

// CacheDelete removes a cache entry from the backend and the catalog.
// Deleting a missing entry succeeds.
func (s *Service) CacheDelete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	key, err := validateName(key, true)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteItem(ctx, s.cfg.CachePath, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	if err := s.catalog.Delete(ctx, key); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("delete cache record: %w", err)
	}
	s.logger.Info(ctx, "cache entry deleted", "key", key)
	return nil
}

// CacheList returns cache keys starting with prefix, most recently updated first.
func (s *Service) CacheList(ctx context.Context, prefix string) ([]string, error) {
	files, err := s.catalog.ListHidden(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.ID)
	}
	return keys, nil
}
