// Package sync keeps the client's local copies of server-owned state
// consistent with the server. REST results and push events converge on
// the same collections; every change nudges the UI through Updates.
package sync

import (
	gosync "sync"
	"time"
)

// Entity is anything with a server-assigned identity.
type Entity interface {
	EntityID() string
}

// Versioned entities carry the server modification time.
type Versioned interface {
	Entity
	Version() time.Time
}

// Collection is an ordered, identity-unique list of entities. It is safe
// for concurrent use; callers never hold its lock across I/O.
//
// Every insert, replace and remove advances a sequence number so a fetch
// that started at Mark can be merged with Merge without losing changes
// made while it was in flight.
type Collection[T Entity] struct {
	mu    gosync.RWMutex
	items []T
	index map[string]int

	seq     uint64
	written map[string]uint64
	removed map[string]uint64
}

// NewCollection returns an empty collection.
func NewCollection[T Entity]() *Collection[T] {
	return &Collection[T]{
		index:   make(map[string]int),
		written: make(map[string]uint64),
		removed: make(map[string]uint64),
	}
}

// Mark returns the current sequence number.
func (c *Collection[T]) Mark() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Insert appends x unless an entity with the same identity is present.
// It reports whether x was inserted.
func (c *Collection[T]) Insert(x T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := x.EntityID()
	if _, ok := c.index[id]; ok {
		return false
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, x)
	c.seq++
	c.written[id] = c.seq
	delete(c.removed, id)
	return true
}

// Replace swaps the held entity with x in place when accept approves the
// held value. found reports whether the identity was present at all.
func (c *Collection[T]) Replace(x T, accept func(held T) bool) (replaced, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[x.EntityID()]
	if !ok {
		return false, false
	}
	if accept != nil && !accept(c.items[i]) {
		return false, true
	}
	c.items[i] = x
	c.seq++
	c.written[x.EntityID()] = c.seq
	return true, true
}

// Remove deletes the entity with id and returns it.
func (c *Collection[T]) Remove(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	i, ok := c.index[id]
	if !ok {
		return zero, false
	}
	removed := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, id)
	delete(c.written, id)
	c.seq++
	c.removed[id] = c.seq
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].EntityID()] = j
	}
	return removed, true
}

// Get returns the entity with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	i, ok := c.index[id]
	if !ok {
		return zero, false
	}
	return c.items[i], true
}

// Has reports whether id is present.
func (c *Collection[T]) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[id]
	return ok
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Items returns a copy of the entities in order.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// IDs returns the identities in order.
func (c *Collection[T]) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.items))
	for i, x := range c.items {
		ids[i] = x.EntityID()
	}
	return ids
}

// Reset replaces the contents with items, keeping the first occurrence
// of each identity. It returns how many duplicates were dropped.
func (c *Collection[T]) Reset(items []T) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removed = make(map[string]uint64)
	return c.rebuild(items, nil)
}

// Merge replaces the contents with items fetched since mark. Entities
// written after mark keep their local value, entities inserted after
// mark and absent from items are appended, and entities removed after
// mark stay removed. It returns how many duplicates were dropped.
func (c *Collection[T]) Merge(items []T, mark uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var newer []T
	for _, x := range c.items {
		if c.written[x.EntityID()] > mark {
			newer = append(newer, x)
		}
	}

	fetched := make([]T, 0, len(items))
	for _, x := range items {
		if c.removed[x.EntityID()] > mark {
			continue
		}
		fetched = append(fetched, x)
	}

	for id, at := range c.removed {
		if at <= mark {
			delete(c.removed, id)
		}
	}
	return c.rebuild(fetched, newer)
}

// rebuild lays out items followed by the entries of newer not already
// present. Entries of newer replace same-identity items in place. The
// caller holds mu.
func (c *Collection[T]) rebuild(items, newer []T) int {
	local := make(map[string]T, len(newer))
	for _, x := range newer {
		local[x.EntityID()] = x
	}
	written := make(map[string]uint64, len(items)+len(newer))

	c.items = make([]T, 0, len(items)+len(newer))
	c.index = make(map[string]int, len(items)+len(newer))
	dropped := 0
	add := func(x T) {
		id := x.EntityID()
		c.index[id] = len(c.items)
		c.items = append(c.items, x)
		written[id] = c.written[id]
	}
	for _, x := range items {
		id := x.EntityID()
		if _, ok := c.index[id]; ok {
			dropped++
			continue
		}
		if held, ok := local[id]; ok {
			x = held
		}
		add(x)
	}
	for _, x := range newer {
		if _, ok := c.index[x.EntityID()]; !ok {
			add(x)
		}
	}
	c.written = written
	return dropped
}
