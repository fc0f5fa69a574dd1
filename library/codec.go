package library

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Snapshot layout, all integers in native byte order:
//
//	header  book_count int32 | member_count int32
//	book    id int64 | title [100] | author [100] | isbn [20] | available int32 | added_at int64
//	member  id int64 | name [50] | email [100] | borrowed [5]int64 | borrowed_count int32 | pad [2]
//
// Text fields are NUL padded to their full width.
const (
	headerSize       = 8
	bookRecordSize   = 8 + MaxTitleLength + MaxAuthorLength + MaxISBNLength + 4 + 8
	memberRecordSize = 8 + MaxNameLength + MaxEmailLength + 8*MaxBorrowedBooks + 4 + 2
)

var order = binary.NativeEndian

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func appendText(buf []byte, s string, size int) []byte {
	s = bounded(s, size)
	buf = append(buf, s...)
	return append(buf, make([]byte, size-len(s))...)
}

func appendBook(buf []byte, b *Book) []byte {
	buf = order.AppendUint64(buf, uint64(b.ID))
	buf = appendText(buf, b.Title, MaxTitleLength)
	buf = appendText(buf, b.Author, MaxAuthorLength)
	buf = appendText(buf, b.ISBN, MaxISBNLength)
	var avail uint32
	if b.Available {
		avail = 1
	}
	buf = order.AppendUint32(buf, avail)
	return order.AppendUint64(buf, uint64(b.AddedAt.Unix()))
}

func appendMember(buf []byte, m *Member) []byte {
	buf = order.AppendUint64(buf, uint64(m.ID))
	buf = appendText(buf, m.Name, MaxNameLength)
	buf = appendText(buf, m.Email, MaxEmailLength)
	for i := range MaxBorrowedBooks {
		var id int64
		if i < len(m.Borrowed) {
			id = m.Borrowed[i]
		}
		buf = order.AppendUint64(buf, uint64(id))
	}
	buf = order.AppendUint32(buf, uint32(len(m.Borrowed)))
	return append(buf, 0, 0)
}

// encode renders the whole catalog. The caller holds the lock.
func (c *Catalog) encode() []byte {
	nb, nm := c.books.len(), c.members.len()
	buf := make([]byte, 0, headerSize+nb*bookRecordSize+nm*memberRecordSize)
	buf = order.AppendUint32(buf, uint32(int32(nb)))
	buf = order.AppendUint32(buf, uint32(int32(nm)))
	for i := range nb {
		buf = appendBook(buf, c.books.at(i))
	}
	for i := range nm {
		buf = appendMember(buf, c.members.at(i))
	}
	return buf
}

func (c *Catalog) snapshotBytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.encode(), nil
}

// Encode writes the catalog snapshot to w in a single write.
func (c *Catalog) Encode(w io.Writer) error {
	data, err := c.snapshotBytes()
	if err != nil {
		return err
	}
	n, err := w.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("%w: write snapshot: %w", ErrIO, err)
	}
	return nil
}

// Save writes the catalog to path, replacing any previous content.
func (c *Catalog) Save(path string) (err error) {
	if err := requireText("path", path); err != nil {
		return err
	}
	data, err := c.snapshotBytes()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		c.log.Error("save failed", "path", path, "err", err)
		return fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", ErrIO, path, cerr)
		}
	}()

	n, err := f.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.log.Error("save failed", "path", path, "err", err)
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	c.log.Info("catalog saved", "path", path, "bytes", n)
	return nil
}

// Digest returns the hex BLAKE2b-256 digest of the catalog snapshot. It
// equals FileDigest of a file the catalog was just saved to.
func (c *Catalog) Digest() (string, error) {
	data, err := c.snapshotBytes()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FileDigest returns the hex BLAKE2b-256 digest of the data file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", openError(path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w: %w", ErrNotFound, ErrIO, err)
	}
	return fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
}

// readError classifies a failed read: running out of data means the file
// is shorter than its header claims.
func readError(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short read of %s", ErrCorruptData, what)
	}
	return fmt.Errorf("%w: read %s: %w", ErrIO, what, err)
}

func readText(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func decodeBook(rec []byte) (Book, error) {
	var b Book
	b.ID = int64(order.Uint64(rec))
	off := 8
	b.Title = readText(rec[off : off+MaxTitleLength])
	off += MaxTitleLength
	b.Author = readText(rec[off : off+MaxAuthorLength])
	off += MaxAuthorLength
	b.ISBN = readText(rec[off : off+MaxISBNLength])
	off += MaxISBNLength
	b.Available = order.Uint32(rec[off:]) != 0
	off += 4
	b.AddedAt = time.Unix(int64(order.Uint64(rec[off:])), 0).UTC()
	if b.ID <= 0 {
		return Book{}, fmt.Errorf("%w: book id %d", ErrCorruptData, b.ID)
	}
	return b, nil
}

func decodeMember(rec []byte) (Member, error) {
	var m Member
	m.ID = int64(order.Uint64(rec))
	off := 8
	m.Name = readText(rec[off : off+MaxNameLength])
	off += MaxNameLength
	m.Email = readText(rec[off : off+MaxEmailLength])
	off += MaxEmailLength
	slots := rec[off : off+8*MaxBorrowedBooks]
	off += 8 * MaxBorrowedBooks
	count := int32(order.Uint32(rec[off:]))
	if m.ID <= 0 {
		return Member{}, fmt.Errorf("%w: member id %d", ErrCorruptData, m.ID)
	}
	if count < 0 || count > MaxBorrowedBooks {
		return Member{}, fmt.Errorf("%w: member %d borrowed count %d", ErrCorruptData, m.ID, count)
	}
	m.Borrowed = make([]int64, count, MaxBorrowedBooks)
	for i := range m.Borrowed {
		m.Borrowed[i] = int64(order.Uint64(slots[i*8:]))
	}
	return m, nil
}

// Decode reads a snapshot written by Encode or Save into a new catalog.
// Identity counters continue after the highest loaded IDs.
func Decode(r io.Reader, opts ...Option) (*Catalog, error) {
	c, err := NewCatalog(opts...)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)

	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, readError("header", err)
	}
	nb := int32(order.Uint32(header[0:4]))
	nm := int32(order.Uint32(header[4:8]))
	if nb < 0 || nm < 0 {
		return nil, fmt.Errorf("%w: negative record count (books %d, members %d)", ErrCorruptData, nb, nm)
	}
	// Storage grows as records arrive, so a header claiming more records
	// than the input holds fails on the short read instead of allocating.
	if err := c.books.admit(int(nb)); err != nil {
		return nil, err
	}
	if err := c.members.admit(int(nm)); err != nil {
		return nil, err
	}

	var brec [bookRecordSize]byte
	for i := range int(nb) {
		if _, err := io.ReadFull(br, brec[:]); err != nil {
			return nil, readError(fmt.Sprintf("book %d of %d", i+1, nb), err)
		}
		b, err := decodeBook(brec[:])
		if err != nil {
			return nil, err
		}
		if err := c.books.push(b); err != nil {
			return nil, err
		}
	}

	var mrec [memberRecordSize]byte
	for i := range int(nm) {
		if _, err := io.ReadFull(br, mrec[:]); err != nil {
			return nil, readError(fmt.Sprintf("member %d of %d", i+1, nm), err)
		}
		m, err := decodeMember(mrec[:])
		if err != nil {
			return nil, err
		}
		if err := c.members.push(m); err != nil {
			return nil, err
		}
	}

	if err := c.checkLoans(); err != nil {
		return nil, err
	}
	c.restoreCounters()
	return c, nil
}

// checkLoans verifies that every borrowed entry names an existing book that
// is marked unavailable and is held by no other member.
func (c *Catalog) checkLoans() error {
	available := make(map[int64]bool, c.books.len())
	for _, b := range c.books.items {
		available[b.ID] = b.Available
	}
	holder := make(map[int64]int64)
	for _, m := range c.members.items {
		for _, bookID := range m.Borrowed {
			avail, ok := available[bookID]
			switch {
			case !ok:
				return fmt.Errorf("%w: member %d holds unknown book %d", ErrCorruptData, m.ID, bookID)
			case avail:
				return fmt.Errorf("%w: member %d holds book %d which is marked available", ErrCorruptData, m.ID, bookID)
			}
			if other, held := holder[bookID]; held {
				return fmt.Errorf("%w: book %d held by members %d and %d", ErrCorruptData, bookID, other, m.ID)
			}
			holder[bookID] = m.ID
		}
	}
	return nil
}

// Load reads the data file at path into a new catalog.
func Load(path string, opts ...Option) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	c, err := Decode(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	c.log.Info("catalog loaded", "path", path, "books", c.books.len(), "members", c.members.len())
	return c, nil
}
