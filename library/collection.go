package library

import (
	"fmt"
	"iter"
)

type record[T any] interface {
	recordID() int64
	clone() T
}

func (b Book) clone() Book { return b }

// collection is the growable store shared by books and members. The slice
// length is the logical count and its capacity is the allocated slot count;
// growth always doubles so the layout stays predictable.
type collection[T record[T]] struct {
	items []T
	limit int
}

func newCollection[T record[T]](limit int) collection[T] {
	return collection[T]{
		items: make([]T, 0, min(InitialCapacity, limit)),
		limit: limit,
	}
}

func (c *collection[T]) len() int      { return len(c.items) }
func (c *collection[T]) capacity() int { return cap(c.items) }

// grow doubles the capacity once. It fails without touching the collection
// when the limit has already been reached.
func (c *collection[T]) grow() error {
	current := cap(c.items)
	if current >= c.limit {
		return fmt.Errorf("%w: collection is at its limit of %d records", ErrOutOfMemory, c.limit)
	}
	next := current * 2
	if next == 0 {
		next = InitialCapacity
	}
	next = min(next, c.limit)
	items := make([]T, len(c.items), next)
	copy(items, c.items)
	c.items = items
	return nil
}

// admit reports whether n records fit under the limit, without allocating.
func (c *collection[T]) admit(n int) error {
	if n > c.limit {
		return fmt.Errorf("%w: %d records requested, limit is %d", ErrOutOfMemory, n, c.limit)
	}
	return nil
}

// reserve grows the collection until it can hold n records.
func (c *collection[T]) reserve(n int) error {
	if err := c.admit(n); err != nil {
		return err
	}
	for cap(c.items) < n {
		if err := c.grow(); err != nil {
			return err
		}
	}
	return nil
}

// add stores rec at the end. assign is called once storage is secured, so a
// failed add never consumes an identity.
func (c *collection[T]) add(rec T, assign func(*T)) (T, error) {
	if len(c.items) == cap(c.items) {
		if err := c.grow(); err != nil {
			var zero T
			return zero, err
		}
	}
	if assign != nil {
		assign(&rec)
	}
	c.items = append(c.items, rec)
	return rec.clone(), nil
}

// push appends a record that already carries its identity, doubling the
// capacity first when every slot is taken.
func (c *collection[T]) push(rec T) error {
	if len(c.items) == cap(c.items) {
		if err := c.grow(); err != nil {
			return err
		}
	}
	c.items = append(c.items, rec)
	return nil
}

// find returns the index of the first record with id, or -1.
func (c *collection[T]) find(id int64) int {
	for i := range c.items {
		if c.items[i].recordID() == id {
			return i
		}
	}
	return -1
}

// at returns the stored record for in-place updates.
func (c *collection[T]) at(i int) *T { return &c.items[i] }

// remove deletes the record with id, shifting later records left so the
// insertion order of the rest is preserved.
func (c *collection[T]) remove(id int64) (T, bool) {
	var zero T
	i := c.find(id)
	if i < 0 {
		return zero, false
	}
	removed := c.items[i]
	n := len(c.items)
	copy(c.items[i:], c.items[i+1:])
	c.items[n-1] = zero
	c.items = c.items[:n-1]
	return removed, true
}

// snapshot copies the live range.
func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	for i := range c.items {
		out[i] = c.items[i].clone()
	}
	return out
}

// all yields copies of the live records in insertion order. The copy is taken
// when iteration starts, so every range over the sequence sees a consistent
// view and may call back into the catalog.
func (c *collection[T]) all(lock func() func()) iter.Seq[T] {
	return func(yield func(T) bool) {
		unlock := lock()
		items := c.snapshot()
		unlock()
		for _, rec := range items {
			if !yield(rec) {
				return
			}
		}
	}
}

// release drops every record and the backing storage.
func (c *collection[T]) release() {
	clear(c.items)
	c.items = nil
}
