package library

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed adds books and members named after their position.
func seed(t *testing.T, c *Catalog, books, members int) {
	t.Helper()
	for i := range books {
		_, err := c.AddBook(fmt.Sprintf("Book %d", i+1), "Author", fmt.Sprintf("isbn-%d", i+1))
		require.NoError(t, err)
	}
	for i := range members {
		_, err := c.AddMember(fmt.Sprintf("Member %d", i+1), fmt.Sprintf("m%d@x.com", i+1))
		require.NoError(t, err)
	}
}

func TestBorrowFlow(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 2, 2)

	require.NoError(t, c.Borrow(1, 2))

	book, err := c.FindBook(2)
	require.NoError(t, err)
	assert.False(t, book.Available)
	m, err := c.FindMember(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, m.Borrowed)

	// Nobody can borrow it again, not even the holder.
	assert.ErrorIs(t, c.Borrow(2, 2), ErrUnavailable)
	assert.ErrorIs(t, c.Borrow(1, 2), ErrUnavailable)
}

func TestBorrowErrors(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 1, 1)

	tests := []struct {
		name     string
		memberID int64
		bookID   int64
		want     error
	}{
		{"unknown member", 9, 1, ErrNotFound},
		{"unknown book", 1, 9, ErrNotFound},
		{"both unknown", 9, 9, ErrNotFound},
		{"zero member id", 0, 1, ErrInvalidArgument},
		{"negative book id", 1, -1, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.Borrow(tt.memberID, tt.bookID), tt.want)
		})
	}
	assert.Equal(t, 0, c.Statistics().BorrowedBooks)
}

func TestBorrowLimit(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, MaxBorrowedBooks+1, 1)

	for b := int64(1); b <= MaxBorrowedBooks; b++ {
		require.NoError(t, c.Borrow(1, b))
	}
	err := c.Borrow(1, MaxBorrowedBooks+1)
	require.ErrorIs(t, err, ErrLimitReached)

	m, err := c.FindMember(1)
	require.NoError(t, err)
	assert.Len(t, m.Borrowed, MaxBorrowedBooks)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, m.Borrowed)

	book, err := c.FindBook(MaxBorrowedBooks + 1)
	require.NoError(t, err)
	assert.True(t, book.Available, "refused borrow leaves the book alone")
}

func TestUnavailableCheckedBeforeLimit(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, MaxBorrowedBooks+1, 2)
	for b := int64(1); b <= MaxBorrowedBooks; b++ {
		require.NoError(t, c.Borrow(1, b))
	}
	require.NoError(t, c.Borrow(2, MaxBorrowedBooks+1))

	assert.ErrorIs(t, c.Borrow(1, MaxBorrowedBooks+1), ErrUnavailable)
}

func TestReturnIsIdempotent(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 1, 1)
	require.NoError(t, c.Borrow(1, 1))

	returned, err := c.Return(1, 1)
	require.NoError(t, err)
	assert.True(t, returned)
	book, _ := c.FindBook(1)
	assert.True(t, book.Available)

	returned, err = c.Return(1, 1)
	require.NoError(t, err)
	assert.False(t, returned)
	book, _ = c.FindBook(1)
	assert.True(t, book.Available)
}

func TestReturnCompactsBorrowedList(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 4, 1)
	for b := int64(1); b <= 4; b++ {
		require.NoError(t, c.Borrow(1, b))
	}

	returned, err := c.Return(1, 2)
	require.NoError(t, err)
	require.True(t, returned)

	m, _ := c.FindMember(1)
	assert.Equal(t, []int64{1, 3, 4}, m.Borrowed)

	held, err := c.BorrowedBy(1)
	require.NoError(t, err)
	require.Len(t, held, 3)
	assert.Equal(t, "Book 3", held[1].Title)
}

func TestReturnOfOtherMembersBook(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 1, 2)
	require.NoError(t, c.Borrow(1, 1))

	returned, err := c.Return(2, 1)
	require.NoError(t, err)
	assert.False(t, returned)

	book, _ := c.FindBook(1)
	assert.False(t, book.Available, "still lent to member 1")
	m, _ := c.FindMember(1)
	assert.Equal(t, []int64{1}, m.Borrowed)
}

func TestReturnErrors(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 1, 1)

	_, err := c.Return(9, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	// A missing book the member does not hold is just nothing to return.
	returned, err := c.Return(1, 9)
	require.NoError(t, err)
	assert.False(t, returned)

	_, err = c.Return(0, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRemovingBorrowedBookDropsLoan(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 3, 1)
	require.NoError(t, c.Borrow(1, 1))
	require.NoError(t, c.Borrow(1, 2))
	require.NoError(t, c.Borrow(1, 3))

	c.RemoveBook(2)

	m, _ := c.FindMember(1)
	assert.Equal(t, []int64{1, 3}, m.Borrowed)
	returned, err := c.Return(1, 2)
	require.NoError(t, err)
	assert.False(t, returned)
}

func TestRemovingMemberReleasesBooks(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 3, 2)
	require.NoError(t, c.Borrow(1, 1))
	require.NoError(t, c.Borrow(1, 3))
	require.NoError(t, c.Borrow(2, 2))

	c.RemoveMember(1)

	s := c.Statistics()
	assert.Equal(t, 2, s.AvailableBooks)
	assert.Equal(t, 1, s.BorrowedBooks)
	assert.NoError(t, c.Borrow(2, 1))
}

func TestBorrowedBy(t *testing.T) {
	c := newCatalog(t)
	seed(t, c, 2, 1)

	held, err := c.BorrowedBy(1)
	require.NoError(t, err)
	assert.Empty(t, held)

	_, err = c.BorrowedBy(7)
	assert.ErrorIs(t, err, ErrNotFound)
}
