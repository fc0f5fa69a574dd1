package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/library"
)

// execute runs the root command with args against a data file in a temp dir.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.toml")))
	err := cmd.Execute()
	return out.String(), err
}

func seededDataFile(t *testing.T) string {
	t.Helper()
	cat, err := library.NewCatalog()
	require.NoError(t, err)
	_, err = cat.AddBook("Dune", "Herbert", "111")
	require.NoError(t, err)
	_, err = cat.AddBook("1984", "Orwell", "222")
	require.NoError(t, err)
	_, err = cat.AddMember("Alice", "a@x.com")
	require.NoError(t, err)
	require.NoError(t, cat.Borrow(1, 2))

	path := filepath.Join(t.TempDir(), "library.dat")
	require.NoError(t, cat.Save(path))
	return path
}

func TestRootStartsNewCatalog(t *testing.T) {
	data := filepath.Join(t.TempDir(), "fresh.dat")
	out, err := execute(t, "add book\nDune\nHerbert\n111\nexit\n", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "creating a new one")

	cat, err := library.Load(data)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Statistics().TotalBooks)
}

func TestRootRefusesCorruptData(t *testing.T) {
	data := filepath.Join(t.TempDir(), "bad.dat")
	require.NoError(t, writeFile(data, []byte{1, 2, 3}))
	_, err := execute(t, "exit\n", "--data", data)
	assert.ErrorIs(t, err, library.ErrCorruptData)
}

func TestStatsCommand(t *testing.T) {
	data := seededDataFile(t)

	out, err := execute(t, "", "stats", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Total Books: 2")
	assert.Contains(t, out, "Borrowed Books: 1")

	out, err = execute(t, "", "stats", "--json", "--data", data)
	require.NoError(t, err)
	var s library.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, library.Statistics{TotalBooks: 2, AvailableBooks: 1, BorrowedBooks: 1, TotalMembers: 1}, s)
}

func TestListCommand(t *testing.T) {
	data := seededDataFile(t)

	out, err := execute(t, "", "list", "books", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Borrowed")

	out, err = execute(t, "", "list", "members", "--json", "--data", data)
	require.NoError(t, err)
	var members []library.Member
	require.NoError(t, json.Unmarshal([]byte(out), &members))
	require.Len(t, members, 1)
	assert.Equal(t, []int64{2}, members[0].Borrowed)

	_, err = execute(t, "", "list", "authors", "--data", data)
	assert.Error(t, err)
}

func TestExportImportCommands(t *testing.T) {
	data := seededDataFile(t)
	db := filepath.Join(t.TempDir(), "library.db")

	_, err := execute(t, "", "export-sqlite", db, "--data", data)
	require.NoError(t, err)

	restored := filepath.Join(t.TempDir(), "restored.dat")
	_, err = execute(t, "", "import-sqlite", db, "--data", restored)
	require.NoError(t, err)

	want, err := library.FileDigest(data)
	require.NoError(t, err)
	got, err := library.FileDigest(restored)
	require.NoError(t, err)
	assert.Equal(t, want, got, "sqlite round trip reproduces the data file")

	cat, err := library.ImportSQLite(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Statistics().TotalBooks)
}

func TestImportCommandKeepsDataFileOnBadSource(t *testing.T) {
	data := seededDataFile(t)
	before, err := library.FileDigest(data)
	require.NoError(t, err)

	empty := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, writeFile(empty, nil))
	_, err = execute(t, "", "import-sqlite", empty, "--data", data)
	assert.ErrorIs(t, err, library.ErrCorruptData)

	after, err := library.FileDigest(data)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestChecksumCommand(t *testing.T) {
	data := seededDataFile(t)
	want, err := library.FileDigest(data)
	require.NoError(t, err)

	out, err := execute(t, "", "checksum", "--data", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, want))

	_, err = execute(t, "", "checksum", "--data", filepath.Join(t.TempDir(), "none.dat"))
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
