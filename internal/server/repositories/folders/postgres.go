// Package folders provides PostgreSQL-backed storage for the folder tree.
package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// PostgresRepository implements folder storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func parentArg(id *string) any {
	if id == nil {
		return nil
	}
	return *id
}

// FindChild looks up the folder called name directly under parentID
// (nil for the root). It returns common.ErrorNotFound when absent.
func (r *PostgresRepository) FindChild(ctx context.Context, parentID *string, name string) (*models.Folder, error) {
	query := `SELECT id, name, parent_id, created_at FROM folders
		WHERE COALESCE(parent_id, '') = COALESCE($1, '') AND name = $2`

	var f models.Folder
	err := r.db.QueryRowContext(ctx, query, parentArg(parentID), name).
		Scan(&f.ID, &f.Name, &f.ParentID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	return &f, nil
}

// Create inserts a folder. A concurrent insert of the same (parent, name)
// surfaces as a unique violation, see dbx.IsUniqueViolation.
func (r *PostgresRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := `INSERT INTO folders (id, name, parent_id) VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, folder.ID, folder.Name, parentArg(folder.ParentID)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
