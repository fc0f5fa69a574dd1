package library

import (
	"fmt"
	"slices"
)

// Borrow lends book bookID to member memberID.
//
// Both IDs must resolve (ErrNotFound), the book must be available
// (ErrUnavailable) and the member must hold fewer than MaxBorrowedBooks
// (ErrLimitReached). The checks run in that order and a failed borrow changes
// nothing.
func (c *Catalog) Borrow(memberID, bookID int64) error {
	if err := requireID("member", memberID); err != nil {
		return err
	}
	if err := requireID("book", bookID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	mi := c.members.find(memberID)
	bi := c.books.find(bookID)
	if mi < 0 {
		return fmt.Errorf("borrow: member %d: %w", memberID, ErrNotFound)
	}
	if bi < 0 {
		return fmt.Errorf("borrow: book %d: %w", bookID, ErrNotFound)
	}
	member, book := c.members.at(mi), c.books.at(bi)

	if !book.Available {
		c.log.Warn("borrow refused, book unavailable", "member", memberID, "book", bookID)
		return fmt.Errorf("borrow: book %d: %w", bookID, ErrUnavailable)
	}
	if len(member.Borrowed) >= MaxBorrowedBooks {
		c.log.Warn("borrow refused, limit reached", "member", memberID, "book", bookID)
		return fmt.Errorf("borrow: member %d holds %d books: %w", memberID, len(member.Borrowed), ErrLimitReached)
	}

	book.Available = false
	member.Borrowed = append(member.Borrowed, bookID)
	c.log.Info("book borrowed", "member", memberID, "book", bookID)
	return nil
}

// Return takes book bookID back from member memberID and reports whether
// anything was returned. A book the member does not hold is a no-op
// reported as false, whatever state the book itself is in.
func (c *Catalog) Return(memberID, bookID int64) (bool, error) {
	if err := requireID("member", memberID); err != nil {
		return false, err
	}
	if err := requireID("book", bookID); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return false, err
	}

	mi := c.members.find(memberID)
	if mi < 0 {
		return false, fmt.Errorf("return: member %d: %w", memberID, ErrNotFound)
	}
	member := c.members.at(mi)

	pos := slices.Index(member.Borrowed, bookID)
	if pos < 0 {
		c.log.Info("nothing to return", "member", memberID, "book", bookID)
		return false, nil
	}
	member.Borrowed = slices.Delete(member.Borrowed, pos, pos+1)
	if bi := c.books.find(bookID); bi >= 0 {
		c.books.at(bi).Available = true
	}
	c.log.Info("book returned", "member", memberID, "book", bookID)
	return true, nil
}

// BorrowedBy returns the books member memberID currently holds, in borrow
// order.
func (c *Catalog) BorrowedBy(memberID int64) ([]Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	mi := c.members.find(memberID)
	if mi < 0 {
		return nil, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	books := make([]Book, 0, len(c.members.at(mi).Borrowed))
	for _, id := range c.members.at(mi).Borrowed {
		if bi := c.books.find(id); bi >= 0 {
			books = append(books, *c.books.at(bi))
		}
	}
	return books, nil
}

// releaseLoan drops bookID from whichever member holds it. The caller holds
// the lock.
func (c *Catalog) releaseLoan(bookID int64) {
	for i := range c.members.len() {
		m := c.members.at(i)
		if pos := slices.Index(m.Borrowed, bookID); pos >= 0 {
			m.Borrowed = slices.Delete(m.Borrowed, pos, pos+1)
			c.log.Debug("loan dropped with removed book", "member", m.ID, "book", bookID)
			return
		}
	}
}
