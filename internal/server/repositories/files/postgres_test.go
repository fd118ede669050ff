package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fileCols = []string{"id", "file_name", "file_size", "mime_type", "folder_id", "hidden", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func strPtr(s string) *string { return &s }

func TestUpsert_InsertsAndReturnsRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	q := `(?s)^\s*INSERT\s+INTO\s+files\b.*ON\s+CONFLICT\s*\(id\)\s*DO\s+UPDATE\s+SET\s+file_size\s*=\s*EXCLUDED\.file_size,\s*updated_at\s*=\s*now\(\)\s*RETURNING\b.*$`
	mock.ExpectQuery(q).
		WithArgs("f1", "a.txt", int64(10), "text/plain", nil, false).
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow("f1", "a.txt", int64(10), "text/plain", nil, false, now, now))

	got, err := repo.Upsert(context.Background(), &models.File{
		ID: "f1", FileName: "a.txt", FileSize: 10, MimeType: strPtr("text/plain"),
	})
	require.NoError(t, err)
	assert.Equal(t, "f1", got.ID)
	assert.Equal(t, int64(10), got.FileSize)
	require.NotNil(t, got.MimeType)
	assert.Equal(t, "text/plain", *got.MimeType)
	assert.Nil(t, got.FolderID)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+files`).
		WithArgs("k", "k", int64(1), nil, "dir", true).
		WillReturnError(errors.New("db down"))

	_, err := repo.Upsert(context.Background(), &models.File{
		ID: "k", FileName: "k", FileSize: 1, FolderID: strPtr("dir"), Hidden: true,
	})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestFindByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM files WHERE id=\$1`).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow("f1", "a.txt", int64(3), nil, "folder-1", false, now, now))

	got, err := repo.FindByID(context.Background(), "f1")
	require.NoError(t, err)
	assert.Nil(t, got.MimeType)
	require.NotNil(t, got.FolderID)
	assert.Equal(t, "folder-1", *got.FolderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM files WHERE id=\$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM files`).WillReturnError(errors.New("boom"))

	_, err := repo.FindByID(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "failed to select file")
}

func TestListHidden(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)FROM files\s+WHERE hidden AND starts_with\(id, \$1\)\s+ORDER BY updated_at DESC`).
		WithArgs("builds/").
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow("builds/2", "builds/2", int64(2), nil, nil, true, now, now).
			AddRow("builds/1", "builds/1", int64(1), nil, nil, true, now, now.Add(-time.Hour)))

	got, err := repo.ListHidden(context.Background(), "builds/")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "builds/2", got[0].ID)
	assert.Equal(t, "builds/1", got[1].ID)
}

func TestListHidden_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM files`).
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow("k", "k", "not-a-number", nil, nil, true, time.Now(), time.Now()))

	_, err := repo.ListHidden(context.Background(), "")
	assert.Error(t, err)
}

func TestListHidden_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(fileCols).
		AddRow("k", "k", int64(1), nil, nil, true, time.Now(), time.Now()).
		RowError(0, errors.New("iter"))
	mock.ExpectQuery(`FROM files`).WillReturnRows(rows)

	_, err := repo.ListHidden(context.Background(), "")
	assert.EqualError(t, err, "iter")
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM files WHERE id=\$1`).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "k"))

	mock.ExpectExec(`DELETE FROM files WHERE id=\$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), common.ErrorNotFound)

	mock.ExpectExec(`DELETE FROM files`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))
	err := repo.Delete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error")

	require.NoError(t, mock.ExpectationsWereMet())
}
