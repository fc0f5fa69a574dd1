package library

import (
	"slices"
	"time"
	"unicode/utf8"
)

// Field bounds, in bytes, including the terminating NUL of the on-disk form.
const (
	MaxTitleLength  = 100
	MaxAuthorLength = 100
	MaxISBNLength   = 20
	MaxNameLength   = 50
	MaxEmailLength  = 100

	// MaxBorrowedBooks is how many books one member may hold at a time.
	MaxBorrowedBooks = 5

	// InitialCapacity is the slot count a new collection starts with.
	InitialCapacity = 10
)

// Book represents a catalogued book and its current availability.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      string    `json:"isbn"`
	Available bool      `json:"available"`
	AddedAt   time.Time `json:"added_at"`
}

// Member represents a registered library member.
type Member struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Borrowed []int64 `json:"borrowed"` // book IDs in borrow order
}

func (m Member) clone() Member {
	m.Borrowed = slices.Clone(m.Borrowed)
	return m
}

// Statistics summarises the catalog for reports.
type Statistics struct {
	TotalBooks     int `json:"total_books"`
	AvailableBooks int `json:"available_books"`
	BorrowedBooks  int `json:"borrowed_books"`
	TotalMembers   int `json:"total_members"`
}

func (b Book) recordID() int64   { return b.ID }
func (m Member) recordID() int64 { return m.ID }

// bounded cuts s so that it fits a field of the given size with room for the
// terminating NUL. Cuts never split a UTF-8 sequence.
func bounded(s string, size int) string {
	limit := size - 1
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
