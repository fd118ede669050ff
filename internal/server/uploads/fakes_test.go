package uploads

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/contentrange"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

type fakeSession struct {
	path  string
	total int64
	data  []byte
}

// fakeBackend behaves like a resumable-upload backend that accepts only
// the next contiguous range.
type fakeBackend struct {
	mu         sync.Mutex
	sessions   map[string]*fakeSession
	chunkSizes []int64
	chunkCalls int
	direct     map[string][]byte
	deleted    []string
	openErr    error
	chunkErr   error
	deleteErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sessions: map[string]*fakeSession{}, direct: map[string][]byte{}}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) ResolveChunkSize(m *int) int64 { return storage.ClampChunkSize(m, 1) }

func (b *fakeBackend) GetMetadata(context.Context, string, string) (*storage.Item, error) {
	return nil, common.ErrorNotFound
}

func (b *fakeBackend) UploadDirect(_ context.Context, base, rel string, data []byte) (*storage.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct[storage.JoinPath(base, rel)] = append([]byte(nil), data...)
	return &storage.Item{ID: "item-" + rel, Name: rel, Size: int64(len(data))}, nil
}

func (b *fakeBackend) OpenSession(_ context.Context, base, rel string, chunkSize int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return "", b.openErr
	}
	u := fmt.Sprintf("https://upload.example/session/%d", len(b.sessions)+1)
	b.sessions[u] = &fakeSession{path: storage.JoinPath(base, rel)}
	b.chunkSizes = append(b.chunkSizes, chunkSize)
	return u, nil
}

func (b *fakeBackend) UploadChunk(_ context.Context, sessionURL string, data []byte, r contentrange.Range) (*storage.ChunkResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunkCalls++
	if b.chunkErr != nil {
		return nil, b.chunkErr
	}
	s, ok := b.sessions[sessionURL]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if r.Start != int64(len(s.data)) {
		return nil, fmt.Errorf("unexpected range %s", r)
	}
	s.total = r.Total
	s.data = append(s.data, data...)
	if int64(len(s.data)) < s.total {
		return &storage.ChunkResult{NextExpectedRanges: []string{fmt.Sprintf("%d-", len(s.data))}}, nil
	}
	return &storage.ChunkResult{Done: true, Item: &storage.Item{
		ID:       "item",
		Name:     path.Base(s.path),
		Size:     int64(len(s.data)),
		MimeType: "application/zip",
	}}, nil
}

func (b *fakeBackend) DeleteItem(_ context.Context, base, rel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, storage.JoinPath(base, rel))
	return nil
}

func (b *fakeBackend) DownloadURL(_ context.Context, base, rel string) (string, error) {
	return "https://dl.example/" + storage.JoinPath(base, rel), nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	files   map[string]*models.File
	folders map[string]string
	records int
	err     error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{files: map[string]*models.File{}, folders: map[string]string{}}
}

func (c *fakeCatalog) ResolveFolderPath(_ context.Context, p string) (*string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	id, ok := c.folders[p]
	if !ok {
		id = fmt.Sprintf("folder-%d", len(c.folders)+1)
		c.folders[p] = id
	}
	return &id, nil
}

func (c *fakeCatalog) Record(_ context.Context, f *models.File) (*models.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records++
	if c.err != nil {
		return nil, c.err
	}
	stored := *f
	stored.UpdatedAt = time.Unix(int64(c.records), 0)
	c.files[f.ID] = &stored
	return &stored, nil
}

func (c *fakeCatalog) Get(_ context.Context, id string) (*models.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f, nil
}

func (c *fakeCatalog) ListHidden(_ context.Context, prefix string) ([]*models.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.File
	for id, f := range c.files {
		if f.Hidden && strings.HasPrefix(id, prefix) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (c *fakeCatalog) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(c.files, id)
	return nil
}
