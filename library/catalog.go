package library

import (
	"fmt"
	"iter"
	"math"
	"strings"
	"sync"
	"time"
)

// Logger receives operational messages from the catalog. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithLogger routes catalog logging to logger.
func WithLogger(logger Logger) Option {
	return func(c *Catalog) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidArgument)
		}
		c.log = logger
		return nil
	}
}

// WithCapacityLimit caps how many records each collection may hold. Growth
// past the cap fails with ErrOutOfMemory.
func WithCapacityLimit(n int) Option {
	return func(c *Catalog) error {
		if n < 1 || n > math.MaxInt32 {
			return fmt.Errorf("%w: capacity limit %d", ErrInvalidArgument, n)
		}
		c.limit = n
		return nil
	}
}

// WithClock replaces the time source used for Book.AddedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) error {
		if now == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidArgument)
		}
		c.now = now
		return nil
	}
}

// Catalog owns every book and member record and the loans between them.
// All methods are safe for concurrent use; one lock covers the whole
// catalog because a loan spans both collections.
type Catalog struct {
	mu sync.Mutex

	books   collection[Book]
	members collection[Member]

	nextBookID   int64
	nextMemberID int64

	closed bool
	limit  int
	log    Logger
	now    func() time.Time
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		nextBookID:   1,
		nextMemberID: 1,
		limit:        math.MaxInt32,
		log:          discardLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.books = newCollection[Book](c.limit)
	c.members = newCollection[Member](c.limit)
	return c, nil
}

// Close releases all records. Later calls on the catalog fail with
// ErrInvalidArgument; closing twice is harmless.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.books.release()
	c.members.release()
	c.closed = true
	c.log.Debug("catalog closed")
	return nil
}

func (c *Catalog) lock() func() {
	c.mu.Lock()
	return c.mu.Unlock
}

func (c *Catalog) checkOpen() error {
	if c.closed {
		return fmt.Errorf("%w: catalog is closed", ErrInvalidArgument)
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
	}
	return nil
}

func requireID(kind string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s id %d", ErrInvalidArgument, kind, id)
	}
	return nil
}

// ------------------ Books ------------------

// AddBook stores a new, available book and returns it with its assigned ID.
// Overlong text is truncated to the field bounds.
func (c *Catalog) AddBook(title, author, isbn string) (Book, error) {
	for _, f := range [][2]string{{"title", title}, {"author", author}, {"isbn", isbn}} {
		if err := requireText(f[0], f[1]); err != nil {
			return Book{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return Book{}, err
	}

	b := Book{
		Title:     bounded(title, MaxTitleLength),
		Author:    bounded(author, MaxAuthorLength),
		ISBN:      bounded(isbn, MaxISBNLength),
		Available: true,
		AddedAt:   c.now().UTC().Truncate(time.Second),
	}
	added, err := c.books.add(b, func(b *Book) {
		b.ID = c.nextBookID
		c.nextBookID++
	})
	if err != nil {
		c.log.Error("add book failed", "title", b.Title, "err", err)
		return Book{}, err
	}
	c.log.Info("book added", "id", added.ID, "title", added.Title, "author", added.Author, "isbn", added.ISBN)
	return added, nil
}

// FindBook returns a copy of the book with id.
func (c *Catalog) FindBook(id int64) (Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return Book{}, err
	}
	i := c.books.find(id)
	if i < 0 {
		return Book{}, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return *c.books.at(i), nil
}

// RemoveBook deletes the book with id if present. A borrowed book is also
// dropped from its holder's list.
func (c *Catalog) RemoveBook(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	b, ok := c.books.remove(id)
	if !ok {
		return
	}
	if !b.Available {
		c.releaseLoan(id)
	}
	c.log.Info("book removed", "id", id, "title", b.Title)
}

// Books yields every book in insertion order.
func (c *Catalog) Books() iter.Seq[Book] { return c.books.all(c.lock) }

// SearchBooks returns books whose title, author or ISBN contains query,
// ignoring case. An empty query matches nothing.
func (c *Catalog) SearchBooks(query string) []Book {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Book{}
	}
	results := []Book{}
	for b := range c.Books() {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.ISBN), q) {
			results = append(results, b)
		}
	}
	return results
}

// ------------------ Members ------------------

// AddMember registers a new member and returns it with its assigned ID.
func (c *Catalog) AddMember(name, email string) (Member, error) {
	if err := requireText("name", name); err != nil {
		return Member{}, err
	}
	if err := requireText("email", email); err != nil {
		return Member{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return Member{}, err
	}

	m := Member{
		Name:     bounded(name, MaxNameLength),
		Email:    bounded(email, MaxEmailLength),
		Borrowed: make([]int64, 0, MaxBorrowedBooks),
	}
	added, err := c.members.add(m, func(m *Member) {
		m.ID = c.nextMemberID
		c.nextMemberID++
	})
	if err != nil {
		c.log.Error("add member failed", "name", m.Name, "err", err)
		return Member{}, err
	}
	c.log.Info("member added", "id", added.ID, "name", added.Name, "email", added.Email)
	return added, nil
}

// FindMember returns a copy of the member with id.
func (c *Catalog) FindMember(id int64) (Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return Member{}, err
	}
	i := c.members.find(id)
	if i < 0 {
		return Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return c.members.at(i).clone(), nil
}

// RemoveMember deletes the member with id if present, making every book
// they held available again.
func (c *Catalog) RemoveMember(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	m, ok := c.members.remove(id)
	if !ok {
		return
	}
	for _, bookID := range m.Borrowed {
		if i := c.books.find(bookID); i >= 0 {
			c.books.at(i).Available = true
		}
	}
	c.log.Info("member removed", "id", id, "name", m.Name, "released", len(m.Borrowed))
}

// Members yields every member in insertion order.
func (c *Catalog) Members() iter.Seq[Member] { return c.members.all(c.lock) }

// ------------------ Reports ------------------

// Statistics counts total, available and borrowed books and members.
func (c *Catalog) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Statistics{
		TotalBooks:   c.books.len(),
		TotalMembers: c.members.len(),
	}
	for i := range c.books.len() {
		if c.books.at(i).Available {
			s.AvailableBooks++
		}
	}
	s.BorrowedBooks = s.TotalBooks - s.AvailableBooks
	return s
}

// restoreCounters moves both identity counters past the highest stored ID.
func (c *Catalog) restoreCounters() {
	c.nextBookID = 1
	for i := range c.books.len() {
		c.nextBookID = max(c.nextBookID, c.books.at(i).ID+1)
	}
	c.nextMemberID = 1
	for i := range c.members.len() {
		c.nextMemberID = max(c.nextMemberID, c.members.at(i).ID+1)
	}
}
