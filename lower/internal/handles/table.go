// Package handles maps guest-visible integer handles to host values.
//
// Handles are 1-based so that zero never names a live value. Released
// handles are reused, most recently released first.
package handles

import "sync"

// Handle names one value in a Table.
type Handle uint32

// Table is a concurrency-safe handle table.
type Table[T any] struct {
	entries  []entry[T]
	freeList []Handle
	mu       sync.RWMutex
}

type entry[T any] struct {
	value T
	valid bool
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 16),
		freeList: make([]Handle, 0, 4),
	}
}

// Insert stores a value and returns its handle.
func (t *Table[T]) Insert(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := entry[T]{value: value, valid: true}
	if n := len(t.freeList); n > 0 {
		h := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
		return h
	}
	t.entries = append(t.entries, e)
	return Handle(len(t.entries))
}

// Get returns the value for a handle.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero T
	if h == 0 || int(h) > len(t.entries) {
		return zero, false
	}
	e := t.entries[h-1]
	if !e.valid {
		return zero, false
	}
	return e.value, true
}

// Take removes a value and returns it. The handle may be reissued by a
// later Insert.
func (t *Table[T]) Take(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if h == 0 || int(h) > len(t.entries) {
		return zero, false
	}
	e := &t.entries[h-1]
	if !e.valid {
		return zero, false
	}
	value := e.value
	*e = entry[T]{}
	t.freeList = append(t.freeList, h)
	return value, true
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}
