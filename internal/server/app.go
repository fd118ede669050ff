// Package server wires the upload subsystem together: catalog database,
// storage backend, orchestrator, HTTP API and the gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/auth"
	"github.com/dmitrijs2005/gophdrive/internal/server/catalog"
	"github.com/dmitrijs2005/gophdrive/internal/server/config"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage/onedrive"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage/s3store"
	"github.com/dmitrijs2005/gophdrive/internal/server/uploads"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	gs "github.com/dmitrijs2005/gophdrive/internal/server/grpc"
	hs "github.com/dmitrijs2005/gophdrive/internal/server/http"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	uploads    *uploads.Service
	authorizer *auth.Authorizer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	if v, err := rm.SchemaVersion(ctx, db); err == nil {
		logger.Info(ctx, "catalog schema ready", "version", v)
	}

	cat, err := catalog.New(db, rm, c.FolderCacheSize, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog init error: %w", err)
	}

	obs, err := uploads.NewPrometheusObserver("gophdrive", prometheus.DefaultRegisterer)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	missing := c.MissingBackendSettings()
	var backend storage.Backend
	if len(missing) == 0 {
		backend, err = newBackend(ctx, c, obs.RecordRetry, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage backend init error: %w", err)
		}
	} else {
		logger.Warn(ctx, "storage backend is not configured, uploads are disabled", "backend", c.Backend, "missing", missing)
	}

	authz, err := auth.NewAuthorizer(c.UploadToken, c.GrantValidityDuration)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("authorizer init error: %w", err)
	}
	if c.UploadToken == "" {
		logger.Warn(ctx, "upload token is not configured, every request will be refused")
	}

	svc := uploads.NewService(backend, cat, uploads.Config{
		Secret:                 []byte(auth.NormalizeToken(c.UploadToken)),
		SessionMaxAge:          c.SessionMaxAge,
		UploadPath:             c.StoragePath,
		CachePath:              c.CacheBasePath(),
		DirectUploadLimit:      c.DirectUploadLimit,
		SniffBase64:            c.SniffBase64,
		DefaultChunkMultiplier: c.DefaultChunkMultiplier,
		Missing:                missing,
	}, obs, logger)

	return &App{config: c, logger: logger, db: db, uploads: svc, authorizer: authz}, nil
}

// newBackend builds the storage backend selected by c.Backend.
func newBackend(ctx context.Context, c *config.Config, onRetry func(op string, retry int, err error), l logging.Logger) (storage.Backend, error) {
	switch c.Backend {
	case config.BackendS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			BaseEndpoint:  c.S3BaseEndpoint,
			UsePathStyle:  c.S3BaseEndpoint != "",
			PresignExpiry: time.Hour,
			OnRetry:       onRetry,
		}, l)
	case config.BackendOneDrive, "":
		return onedrive.New(onedrive.Config{
			ClientID:     c.OneDriveClientID,
			ClientSecret: c.OneDriveClientSecret,
			TenantID:     c.OneDriveTenantID,
			UserEmail:    c.OneDriveUserEmail,
			DownloadHost: c.OneDriveDownloadHost,
			OnRetry:      onRetry,
		}, l)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := hs.NewHandler(app.uploads, app.authorizer, prometheus.DefaultGatherer, app.logger)
	s := hs.NewServer(app.config.EndpointAddrHTTP, h, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.db, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
