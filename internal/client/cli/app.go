package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/client/uploader"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/docker/go-units"
)

// Uploader is the part of uploader.Client the commands use.
type Uploader interface {
	Upload(ctx context.Context, path string, opts uploader.Options) (*uploader.File, error)
	CachePut(ctx context.Context, key, path string, chunkMultiplier int) (int64, error)
	CacheList(ctx context.Context, prefix string) ([]string, error)
	CacheDelete(ctx context.Context, key string) error
	IssueGrant(ctx context.Context, subject string, ttl time.Duration) (*uploader.Grant, error)
}

type App struct {
	config   *config.Config
	uploader Uploader
	out      io.Writer
	errOut   io.Writer

	newUploader func(cfg *config.Config, progress func(sent, total int64), l logging.Logger) (Uploader, error)
}

func NewApp() *App {
	return &App{out: os.Stdout, errOut: os.Stderr, newUploader: defaultUploader}
}

func defaultUploader(cfg *config.Config, progress func(sent, total int64), l logging.Logger) (Uploader, error) {
	return uploader.New(uploader.Config{
		ServerURL: cfg.ServerURL,
		Token:     cfg.Token,
		Timeout:   cfg.Timeout,
		Progress:  progress,
	}, l)
}

// progress prints "sent / total" on a single status line.
func (a *App) progress(sent, total int64) {
	fmt.Fprintf(a.errOut, "\r%s / %s", units.BytesSize(float64(sent)), units.BytesSize(float64(total)))
	if sent >= total {
		fmt.Fprintln(a.errOut)
	}
}
