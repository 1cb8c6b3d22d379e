// Package symtab holds the compiler's emitted-symbols set.
package symtab

import "sync"

// Symbol is anything the compiler emits under a linker-visible name.
type Symbol interface {
	SymbolName() string
}

// Table is an append-only set of symbols keyed by identity. Insertion order
// is preserved. A Table is safe for concurrent use.
type Table struct {
	index   map[Symbol]int
	symbols []Symbol
	mu      sync.RWMutex
}

// New creates an empty table.
func New() *Table {
	return &Table{index: make(map[Symbol]int)}
}

// Add inserts sym and reports whether it was not already present.
func (t *Table) Add(sym Symbol) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index == nil {
		t.index = make(map[Symbol]int)
	}
	if _, ok := t.index[sym]; ok {
		return false
	}
	t.index[sym] = len(t.symbols)
	t.symbols = append(t.symbols, sym)
	return true
}

// Contains reports whether sym was added.
func (t *Table) Contains(sym Symbol) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[sym]
	return ok
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbols)
}

// Symbols returns a snapshot in insertion order.
func (t *Table) Symbols() []Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Symbol(nil), t.symbols...)
}

// Each calls fn for every symbol of type T in insertion order.
func Each[T Symbol](t *Table, fn func(T)) {
	for _, s := range t.Symbols() {
		if v, ok := s.(T); ok {
			fn(v)
		}
	}
}
