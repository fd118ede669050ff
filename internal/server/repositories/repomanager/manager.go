package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophdrive/internal/server/repositories/folders"
)

// RepositoryManager hands out catalog repositories bound to a DB or a
// transaction, and owns the schema.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	SchemaVersion(ctx context.Context, db *sql.DB) (int64, error)

	Files(db dbx.DBTX) files.Repository
	Folders(db dbx.DBTX) folders.Repository
}
