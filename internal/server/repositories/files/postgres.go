// Package files provides the PostgreSQL-backed catalog of uploaded files.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

const columns = `id, file_name, file_size, mime_type, folder_id, hidden, created_at, updated_at`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var f models.File
	if err := s.Scan(&f.ID, &f.FileName, &f.FileSize, &f.MimeType, &f.FolderID, &f.Hidden, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Upsert inserts a file record keyed by ID. When the ID already exists only
// the size and the update timestamp change. The stored row is returned.
func (r *PostgresRepository) Upsert(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (id, file_name, file_size, mime_type, folder_id, hidden)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			file_size = EXCLUDED.file_size,
			updated_at = now()
		RETURNING ` + columns

	row := r.db.QueryRowContext(ctx, query,
		file.ID, file.FileName, file.FileSize, nullable(file.MimeType), nullable(file.FolderID), file.Hidden)
	stored, err := scanFile(row)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

// FindByID returns common.ErrorNotFound when no record has the given ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + columns + ` FROM files WHERE id=$1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// ListHidden returns hidden records whose ID starts with prefix, newest first.
func (r *PostgresRepository) ListHidden(ctx context.Context, prefix string) ([]*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE hidden AND starts_with(id, $1)
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the record. It returns common.ErrorNotFound when nothing was deleted.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
