package library

import "errors"

// Error kinds reported by the catalog. Returned errors wrap one (or, for a
// missing data file, two) of these; test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("book is not available")
	ErrLimitReached    = errors.New("borrow limit reached")
	ErrIO              = errors.New("i/o error")
	ErrCorruptData     = errors.New("corrupt data")
)
