// Package catalog records completed uploads and resolves folder paths to
// folder ids on top of the PostgreSQL repositories.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultFolderCacheSize = 1024

// folder creation races are retried this many times in a fresh transaction
const resolveAttempts = 2

var errFolderRace = errors.New("folder created concurrently")

type Catalog struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	folders *lru.Cache[string, string]
	newID   func() string
	logger  logging.Logger
}

func New(db *sql.DB, repos repomanager.RepositoryManager, cacheSize int, l logging.Logger) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultFolderCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("folder cache: %w", err)
	}
	return &Catalog{
		db:      db,
		repos:   repos,
		folders: cache,
		newID:   uuid.NewString,
		logger:  l.With("module", "catalog"),
	}, nil
}

// NormalizePath drops empty segments and surrounding slashes: "/a//b/" -> "a/b".
func NormalizePath(p string) string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// ResolveFolderPath returns the id of the folder at path, creating missing
// folders along the way. The empty path is the root and resolves to nil.
func (c *Catalog) ResolveFolderPath(ctx context.Context, path string) (*string, error) {
	key := NormalizePath(path)
	if key == "" {
		return nil, nil
	}
	if id, ok := c.folders.Get(key); ok {
		return &id, nil
	}

	var id string
	isRace := func(err error) bool {
		if errors.Is(err, errFolderRace) {
			c.logger.Debug(ctx, "folder race, retrying", "path", key)
			return true
		}
		return false
	}
	err := dbx.WithTxRetry(ctx, c.db, nil, resolveAttempts, isRace, func(ctx context.Context, tx dbx.DBTX) error {
		var werr error
		id, werr = c.walk(ctx, tx, strings.Split(key, "/"))
		return werr
	})
	if err != nil {
		return nil, fmt.Errorf("resolve folder %q: %w", key, err)
	}

	c.folders.Add(key, id)
	return &id, nil
}

func (c *Catalog) walk(ctx context.Context, tx dbx.DBTX, segments []string) (string, error) {
	repo := c.repos.Folders(tx)

	var parent *string
	for _, name := range segments {
		f, err := repo.FindChild(ctx, parent, name)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrorNotFound):
			f = &models.Folder{ID: c.newID(), Name: name, ParentID: parent}
			if err := repo.Create(ctx, f); err != nil {
				if dbx.IsUniqueViolation(err) {
					return "", errFolderRace
				}
				return "", err
			}
		default:
			return "", err
		}
		id := f.ID
		parent = &id
	}
	return *parent, nil
}

// Record upserts the record for a completed upload. A uniqueness violation
// raised by a concurrent writer is resolved by reading the stored row.
func (c *Catalog) Record(ctx context.Context, f *models.File) (*models.File, error) {
	repo := c.repos.Files(c.db)

	stored, err := repo.Upsert(ctx, f)
	if err == nil {
		return stored, nil
	}
	if !dbx.IsUniqueViolation(err) {
		return nil, err
	}
	c.logger.Warn(ctx, "upsert raced, reading stored record", "id", f.ID)
	return repo.FindByID(ctx, f.ID)
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.File, error) {
	return c.repos.Files(c.db).FindByID(ctx, id)
}

func (c *Catalog) ListHidden(ctx context.Context, prefix string) ([]*models.File, error) {
	return c.repos.Files(c.db).ListHidden(ctx, prefix)
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	return c.repos.Files(c.db).Delete(ctx, id)
}
