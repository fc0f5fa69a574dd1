package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mirrorPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mirror", "library.db")
}

func TestExportImportSQLite(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	seed(t, c, 4, 3)
	require.NoError(t, c.Borrow(2, 4))
	require.NoError(t, c.Borrow(2, 1))
	require.NoError(t, c.Borrow(3, 2))
	c.RemoveBook(3)
	c.RemoveMember(1)

	path := mirrorPath(t)
	require.NoError(t, c.ExportSQLite(ctx, path))

	imported, err := ImportSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { imported.Close() })
	assertSameCatalog(t, c, imported)

	m, err := imported.FindMember(2)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1}, m.Borrowed, "borrow order survives")

	b, err := imported.AddBook("New", "Author", "000")
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.ID)
}

func TestExportReplacesPreviousContent(t *testing.T) {
	ctx := context.Background()
	path := mirrorPath(t)

	big := newCatalog(t)
	seed(t, big, 6, 2)
	require.NoError(t, big.Borrow(1, 1))
	require.NoError(t, big.ExportSQLite(ctx, path))

	small := newCatalog(t)
	seed(t, small, 1, 1)
	require.NoError(t, small.ExportSQLite(ctx, path))

	imported, err := ImportSQLite(ctx, path)
	require.NoError(t, err)
	assertSameCatalog(t, small, imported)
}

func TestExportManyRows(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	for i := range insertBatch*2 + 7 {
		_, err := c.AddBook(fmt.Sprintf("Title %d", i), "Author", "isbn")
		require.NoError(t, err)
	}
	path := mirrorPath(t)
	require.NoError(t, c.ExportSQLite(ctx, path))

	db, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM books`))
	assert.Equal(t, insertBatch*2+7, n)
}

func TestImportSQLiteErrors(t *testing.T) {
	ctx := context.Background()

	_, err := ImportSQLite(ctx, filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ImportSQLite(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	path := mirrorPath(t)
	c := newCatalog(t)
	require.NoError(t, c.ExportSQLite(ctx, path))
	db, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE meta SET value='99' WHERE key='schema_version'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = ImportSQLite(ctx, path)
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestImportSQLiteRejectsForeignFiles(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	withoutMeta := filepath.Join(dir, "notes.db")
	db, err := sqlx.Open("sqlite3", withoutMeta)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE notes (body TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	withoutVersion := mirrorPath(t)
	require.NoError(t, newCatalog(t).ExportSQLite(ctx, withoutVersion))
	db, err = sqlx.Open("sqlite3", withoutVersion)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM meta WHERE key='schema_version'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	empty := filepath.Join(dir, "empty.db")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"empty file", empty},
		{"database without meta table", withoutMeta},
		{"missing schema version", withoutVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportSQLite(ctx, tt.path)
			assert.ErrorIs(t, err, ErrCorruptData)
		})
	}

	info, err := os.Stat(empty)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "import must not write to the source file")
}
