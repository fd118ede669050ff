package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/client/uploader"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	uploadPath string
	uploadOpts uploader.Options
	cacheKey   string
	cachePath  string
	cacheMult  int
	listPrefix string
	deleted    string
	subject    string
	ttl        time.Duration
	err        error
}

func (f *fakeUploader) Upload(_ context.Context, path string, opts uploader.Options) (*uploader.File, error) {
	f.uploadPath, f.uploadOpts = path, opts
	if f.err != nil {
		return nil, f.err
	}
	return &uploader.File{ID: "id-1", FileName: "a.txt", FileSize: 12}, nil
}

func (f *fakeUploader) CachePut(_ context.Context, key, path string, m int) (int64, error) {
	f.cacheKey, f.cachePath, f.cacheMult = key, path, m
	return 99, f.err
}

func (f *fakeUploader) CacheList(_ context.Context, prefix string) ([]string, error) {
	f.listPrefix = prefix
	return []string{"k2", "k1"}, f.err
}

func (f *fakeUploader) CacheDelete(_ context.Context, key string) error {
	f.deleted = key
	return f.err
}

func (f *fakeUploader) IssueGrant(_ context.Context, subject string, ttl time.Duration) (*uploader.Grant, error) {
	f.subject, f.ttl = subject, ttl
	return &uploader.Grant{Token: "a.b.c", ExpiresAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}, f.err
}

type harness struct {
	app  *App
	fake *fakeUploader
	out  *bytes.Buffer
	err  *bytes.Buffer
	cfg  *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{"GOPHDRIVE_SERVER", "GOPHDRIVE_TOKEN", "GOPHDRIVE_CHUNK_MULTIPLIER", "GOPHDRIVE_TIMEOUT", "GOPHDRIVE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	h := &harness{fake: &fakeUploader{}, out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	h.app = &App{
		out:    h.out,
		errOut: h.err,
		newUploader: func(cfg *config.Config, _ func(sent, total int64), _ logging.Logger) (Uploader, error) {
			h.cfg = cfg
			return h.fake, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) error {
	cmd := newRootCommand(h.app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func stubTerminal(t *testing.T, tty bool, token string) {
	t.Helper()
	origTerm, origRead := isTerminal, readPassword
	isTerminal = func(int) bool { return tty }
	readPassword = func(int) ([]byte, error) { return []byte(token + "\n"), nil }
	t.Cleanup(func() {
		isTerminal = origTerm
		readPassword = origRead
	})
}

func TestUploadCommand(t *testing.T) {
	h := newHarness(t)

	err := h.run("upload", "-t", "secret", "-m", "4", "--folder", "docs/2024", "--name", "b.txt", "./a.txt")
	require.NoError(t, err)

	assert.Equal(t, "./a.txt", h.fake.uploadPath)
	assert.Equal(t, uploader.Options{Name: "b.txt", FolderPath: "docs/2024", ChunkMultiplier: 4}, h.fake.uploadOpts)
	assert.Equal(t, "secret", h.cfg.Token)
	assert.Equal(t, "id-1\ta.txt\t12\n", h.out.String())
}

func TestCacheCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("cache", "put", "-t", "s", "build-1", "out.tar"))
	assert.Equal(t, "build-1", h.fake.cacheKey)
	assert.Equal(t, "out.tar", h.fake.cachePath)
	assert.Equal(t, "build-1\t99\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.run("cache", "ls", "-t", "s", "build"))
	assert.Equal(t, "build", h.fake.listPrefix)
	assert.Equal(t, "k2\nk1\n", h.out.String())

	h.out.Reset()
	require.NoError(t, h.run("cache", "rm", "-t", "s", "build-1"))
	assert.Equal(t, "build-1", h.fake.deleted)
	assert.Equal(t, "deleted build-1\n", h.out.String())
}

func TestGrantCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("grant", "-t", "s", "--ttl", "10m", "ci-runner"))
	assert.Equal(t, "ci-runner", h.fake.subject)
	assert.Equal(t, 10*time.Minute, h.fake.ttl)
	assert.Equal(t, "a.b.c\nexpires 2030-01-02T03:04:05Z\n", h.out.String())
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	h := newHarness(t)
	t.Setenv("GOPHDRIVE_SERVER", "http://env:8080")
	t.Setenv("GOPHDRIVE_TOKEN", "env-token")

	require.NoError(t, h.run("cache", "ls"))
	assert.Equal(t, "http://env:8080", h.cfg.ServerURL)
	assert.Equal(t, "env-token", h.cfg.Token)

	require.NoError(t, h.run("cache", "ls", "-s", "http://flag:9090"))
	assert.Equal(t, "http://flag:9090", h.cfg.ServerURL)
}

func TestTokenPromptedOnTerminal(t *testing.T) {
	h := newHarness(t)
	stubTerminal(t, true, "typed-secret")

	require.NoError(t, h.run("cache", "ls"))
	assert.Equal(t, "typed-secret", h.cfg.Token)
	assert.Contains(t, h.err.String(), "Upload token:")
}

func TestMissingTokenWithoutTerminal(t *testing.T) {
	h := newHarness(t)
	stubTerminal(t, false, "")

	err := h.run("cache", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no upload token")
}

func TestCommandErrorIsReturned(t *testing.T) {
	h := newHarness(t)
	h.fake.err = errors.New("boom")

	err := h.run("cache", "rm", "-t", "s", "k")
	require.EqualError(t, err, "boom")
}

func TestArgsAreValidated(t *testing.T) {
	h := newHarness(t)

	err := h.run("upload", "-t", "s")
	require.Error(t, err)
	assert.Empty(t, h.fake.uploadPath)
}

func TestProgressLine(t *testing.T) {
	var buf bytes.Buffer
	a := &App{errOut: &buf}

	a.progress(1024, 4096)
	a.progress(4096, 4096)

	lines := strings.Split(buf.String(), "\r")
	require.Len(t, lines, 3)
	assert.Equal(t, "1KiB / 4KiB", lines[1])
	assert.Equal(t, "4KiB / 4KiB\n", lines[2])
}
