package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// The SQLite mirror is an exchange and reporting copy of a catalog. The
// binary data file stays the primary store.

const mirrorSchemaVersion = 1

// insertBatch keeps multi-row inserts well under SQLite's variable limit.
const insertBatch = 500

var dialect = goqu.Dialect("sqlite3")

type bookRow struct {
	ID        int64  `db:"id"`
	Position  int    `db:"position"`
	Title     string `db:"title"`
	Author    string `db:"author"`
	ISBN      string `db:"isbn"`
	Available bool   `db:"available"`
	AddedAt   int64  `db:"added_at"`
}

type memberRow struct {
	ID       int64  `db:"id"`
	Position int    `db:"position"`
	Name     string `db:"name"`
	Email    string `db:"email"`
}

type loanRow struct {
	MemberID int64 `db:"member_id"`
	BookID   int64 `db:"book_id"`
	Position int   `db:"position"`
}

// openMirror opens (or creates) the SQLite file at path and applies the
// schema.
func openMirror(ctx context.Context, path string) (*sqlx.DB, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create mirror dir: %w", ErrIO, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrIO, err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openMirrorForRead opens an existing mirror without creating or migrating
// anything, and checks it carries the current schema version. Only SELECTs
// run on the returned handle.
func openMirrorForRead(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrIO, err)
	}

	q, args, err := dialect.From("sqlite_master").Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.C("type").Eq("table"), goqu.C("name").Eq("meta")).
		ToSQL()
	if err != nil {
		db.Close()
		return nil, err
	}
	var tables int
	if err := db.GetContext(ctx, &tables, q, args...); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: inspect %s: %w", ErrCorruptData, path, err)
	}
	if tables == 0 {
		db.Close()
		return nil, fmt.Errorf("%w: %s is not a catalog mirror", ErrCorruptData, path)
	}

	version, err := schemaVersion(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version != mirrorSchemaVersion {
		db.Close()
		return nil, fmt.Errorf("%w: mirror schema version %d, want %d", ErrCorruptData, version, mirrorSchemaVersion)
	}
	return db, nil
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

func applyMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("%w: enable WAL: %w", ErrIO, err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("%w: create meta: %w", ErrIO, err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > mirrorSchemaVersion {
		return fmt.Errorf("%w: mirror schema version %d is newer than %d", ErrCorruptData, current, mirrorSchemaVersion)
	}
	if current == mirrorSchemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin migration: %w", ErrIO, err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY,
            position INTEGER NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            position INTEGER NOT NULL,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            available BOOLEAN NOT NULL DEFAULT 1,
            added_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            book_id INTEGER NOT NULL,
            position INTEGER NOT NULL,
            PRIMARY KEY (member_id, position)
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: apply migration: %w", ErrIO, err)
		}
	}

	q, args, err := dialect.Insert("meta").Prepared(true).
		Rows(goqu.Record{"key": "schema_version", "value": fmt.Sprint(mirrorSchemaVersion)}).
		ToSQL()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("%w: record schema version: %w", ErrIO, err)
	}
	return tx.Commit()
}

func schemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	q, args, err := dialect.From("meta").Prepared(true).
		Select("value").Where(goqu.C("key").Eq("schema_version")).ToSQL()
	if err != nil {
		return 0, err
	}
	var version int
	err = db.GetContext(ctx, &version, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %w", ErrIO, err)
	}
	return version, nil
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

// ExportSQLite writes the catalog into the SQLite file at path, replacing
// whatever catalog the file held before.
func (c *Catalog) ExportSQLite(ctx context.Context, path string) error {
	if err := requireText("path", path); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return err
	}
	books, members := c.books.snapshot(), c.members.snapshot()
	c.mu.Unlock()

	db, err := openMirror(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin export: %w", ErrIO, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"loans", "books", "members"} {
		q, _, err := dialect.Delete(table).ToSQL()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: clear %s: %w", ErrIO, table, err)
		}
	}

	memberRows := make([]any, 0, len(members))
	var loanRows []any
	for pos, m := range members {
		memberRows = append(memberRows, memberRow{ID: m.ID, Position: pos, Name: m.Name, Email: m.Email})
		for i, bookID := range m.Borrowed {
			loanRows = append(loanRows, loanRow{MemberID: m.ID, BookID: bookID, Position: i})
		}
	}
	bookRows := make([]any, 0, len(books))
	for pos, b := range books {
		bookRows = append(bookRows, bookRow{
			ID:        b.ID,
			Position:  pos,
			Title:     b.Title,
			Author:    b.Author,
			ISBN:      b.ISBN,
			Available: b.Available,
			AddedAt:   b.AddedAt.Unix(),
		})
	}

	if err := insertRows(ctx, tx, "members", memberRows); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, "books", bookRows); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, "loans", loanRows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit export: %w", ErrIO, err)
	}
	c.log.Info("catalog exported to sqlite", "path", path, "books", len(books), "members", len(members))
	return nil
}

func insertRows(ctx context.Context, tx *sqlx.Tx, table string, rows []any) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		q, args, err := dialect.Insert(table).Prepared(true).Rows(rows[start:end]...).ToSQL()
		if err != nil {
			return fmt.Errorf("build %s insert: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("%w: insert %s: %w", ErrIO, table, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// ImportSQLite reads a catalog previously written by ExportSQLite. The file
// is only read, never migrated, and must carry the current schema version.
func ImportSQLite(ctx context.Context, path string, opts ...Option) (*Catalog, error) {
	if err := requireText("path", path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, openError(path, err)
	}

	db, err := openMirrorForRead(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var books []bookRow
	if err := selectAll(ctx, db, &books, "books", goqu.C("position").Asc()); err != nil {
		return nil, err
	}
	var members []memberRow
	if err := selectAll(ctx, db, &members, "members", goqu.C("position").Asc()); err != nil {
		return nil, err
	}
	var loans []loanRow
	if err := selectAll(ctx, db, &loans, "loans", goqu.C("member_id").Asc(), goqu.C("position").Asc()); err != nil {
		return nil, err
	}

	c, err := NewCatalog(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.books.reserve(len(books)); err != nil {
		return nil, err
	}
	if err := c.members.reserve(len(members)); err != nil {
		return nil, err
	}

	for _, r := range books {
		c.books.items = append(c.books.items, Book{
			ID:        r.ID,
			Title:     bounded(r.Title, MaxTitleLength),
			Author:    bounded(r.Author, MaxAuthorLength),
			ISBN:      bounded(r.ISBN, MaxISBNLength),
			Available: r.Available,
			AddedAt:   time.Unix(r.AddedAt, 0).UTC(),
		})
	}
	index := make(map[int64]int, len(members))
	for i, r := range members {
		index[r.ID] = i
		c.members.items = append(c.members.items, Member{
			ID:       r.ID,
			Name:     bounded(r.Name, MaxNameLength),
			Email:    bounded(r.Email, MaxEmailLength),
			Borrowed: make([]int64, 0, MaxBorrowedBooks),
		})
	}
	for _, l := range loans {
		i, ok := index[l.MemberID]
		if !ok {
			return nil, fmt.Errorf("%w: loan for unknown member %d", ErrCorruptData, l.MemberID)
		}
		m := c.members.at(i)
		if len(m.Borrowed) >= MaxBorrowedBooks {
			return nil, fmt.Errorf("%w: member %d has more than %d loans", ErrCorruptData, m.ID, MaxBorrowedBooks)
		}
		m.Borrowed = append(m.Borrowed, l.BookID)
	}
	if err := c.checkLoans(); err != nil {
		return nil, err
	}

	c.restoreCounters()
	c.log.Info("catalog imported from sqlite", "path", path, "books", len(books), "members", len(members))
	return c, nil
}

func selectAll(ctx context.Context, db *sqlx.DB, dest any, table string, orderBy ...exp.OrderedExpression) error {
	q, args, err := dialect.From(table).Prepared(true).Order(orderBy...).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s select: %w", table, err)
	}
	if err := db.SelectContext(ctx, dest, q, args...); err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrIO, table, err)
	}
	return nil
}
