package mutation

import (
	"sync"
)

// Entity is a value with a server identity that can be re-keyed, which is
// how a temporary id is swapped for the server's id.
type Entity[T any] interface {
	GetID() string
	WithID(id string) T
}

// Collection is an ordered local copy of server entities, safe for
// concurrent use. Reads return copies of the slice.
type Collection[T Entity[T]] struct {
	name  string
	mu    sync.RWMutex
	items []T
}

// NewCollection returns an empty collection. name prefixes mutation targets,
// e.g. "blocks".
func NewCollection[T Entity[T]](name string) *Collection[T] {
	return &Collection[T]{name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Target returns the reference used for events and versioning of one entity.
func (c *Collection[T]) Target(id string) string { return c.name + "/" + id }

// All returns the entities in order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the entity with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Replace swaps the whole contents, typically after a list fetch.
func (c *Collection[T]) Replace(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)
	c.mu.Lock()
	c.items = cp
	c.mu.Unlock()
}

// Append adds item at the end.
func (c *Collection[T]) Append(item T) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}

// Put replaces the entity with the same id, or appends it.
func (c *Collection[T]) Put(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(item.GetID()); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

// Update applies fn to the entity with id in place.
func (c *Collection[T]) Update(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.items[i] = fn(c.items[i])
	return true
}

// ReplaceID swaps the entity stored under oldID for item, keeping its position.
// If oldID is gone (for example removed meanwhile) nothing changes.
func (c *Collection[T]) ReplaceID(oldID string, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(oldID)
	if i < 0 {
		return false
	}
	c.items[i] = item
	return true
}

// Remove deletes the entity with id.
func (c *Collection[T]) Remove(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	removed := c.items[i]
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	return removed, true
}

// Reorder arranges entities to follow ids. Entities missing from ids keep
// their relative order after the listed ones.
func (c *Collection[T]) Reorder(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	ordered := make([]T, 0, len(c.items))
	var rest []T
	byID := make(map[string]T, len(c.items))
	for _, it := range c.items {
		if _, ok := rank[it.GetID()]; ok {
			byID[it.GetID()] = it
		} else {
			rest = append(rest, it)
		}
	}
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			ordered = append(ordered, it)
		}
	}
	c.items = append(ordered, rest...)
}

// SnapshotItem captures the entity with id and returns a function restoring
// it alone: its value and position if it existed, its absence otherwise.
// Other entities changed in the meantime are left as they are.
func (c *Collection[T]) SnapshotItem(id string) func() {
	c.mu.RLock()
	index := c.indexLocked(id)
	existed := index >= 0
	var saved T
	if existed {
		saved = c.items[index]
	}
	c.mu.RUnlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		i := c.indexLocked(id)
		switch {
		case !existed && i >= 0:
			c.items = append(c.items[:i:i], c.items[i+1:]...)
		case existed && i >= 0:
			c.items[i] = saved
		case existed:
			at := min(index, len(c.items))
			c.items = append(c.items[:at:at], append([]T{saved}, c.items[at:]...)...)
		}
	}
}

func (c *Collection[T]) indexLocked(id string) int {
	for i, it := range c.items {
		if it.GetID() == id {
			return i
		}
	}
	return -1
}
