// Package table implements the open-addressed hash table from spec §4.6:
// linear probing, power-of-two capacity, 75% load-factor growth, and
// tombstones that preserve probe chains across deletes. It backs the
// VM's global environment, every class's method table conceptually (though
// those use plain Go maps keyed by *object.String for simplicity), and —
// via FindStringKey — the intern table itself.
//
// This is implemented against the standard library rather than a
// third-party map (the example pack's github.com/dolthub/swiss, notably)
// because FindStringKey's probe-and-compare contract is part of what spec
// §4.6 specifies, not an implementation detail a generic map could stand
// in for. See DESIGN.md for the full write-up.
package table

import "github.com/kristofer/glox/pkg/value"

// Entry is one slot in the table: a pointer-identity key (always an
// interned string, compared by pointer as spec §4.6 requires) and its
// Value. A deleted slot keeps present set and has tombstone set; probes
// must still pass through it.
type entry[K comparable] struct {
	key      K
	present  bool
	value    value.Value
	tombstone bool
}

// Table is a generic open-addressed hash table. K is instantiated as
// *object.String by every user in this module; it's generic only so
// package table itself never needs to import package object.
type Table[K comparable] struct {
	count   int // live entries, including tombstones (matches clox's bookkeeping)
	entries []entry[K]
	hashOf  func(K) uint32
}

const maxLoad = 0.75

// New creates an empty table. hashOf must return the same hash for equal
// keys (callers pass a closure over *object.String.Hash).
func New[K comparable](hashOf func(K) uint32) *Table[K] {
	return &Table[K]{hashOf: hashOf}
}

// Count returns the number of live (non-tombstone) entries.
func (t *Table[K]) Count() int {
	n := 0
	for _, e := range t.entries {
		if e.present && !e.tombstone {
			n++
		}
	}
	return n
}

// Get looks up key, returning its value and whether it was found.
func (t *Table[K]) Get(key K) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := t.find(key)
	if !e.present || e.tombstone {
		return value.Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value. Returns true if this created a
// brand-new key (used by DEFINE_GLOBAL-style semantics to distinguish
// "declared" from "redefined").
func (t *Table[K]) Set(key K, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(nextCapacity(len(t.entries)))
	}
	idx := t.findIndex(key)
	e := &t.entries[idx]
	isNew := !e.present || e.tombstone
	if isNew && !e.tombstone {
		t.count++
	}
	e.key, e.present, e.value, e.tombstone = key, true, v, false
	return isNew
}

// Delete removes key, leaving a tombstone so later probes for other keys
// that collided with it keep working.
func (t *Table[K]) Delete(key K) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findIndex(key)
	e := &t.entries[idx]
	if !e.present || e.tombstone {
		return false
	}
	e.tombstone = true
	e.value = value.Nil
	return true
}

// Each calls fn for every live (non-tombstone) entry. Used by the
// collector to walk the intern table and the globals table for marking
// and white-string removal.
func (t *Table[K]) Each(fn func(key K, v value.Value)) {
	for _, e := range t.entries {
		if e.present && !e.tombstone {
			fn(e.key, e.value)
		}
	}
}

// AddAll copies every live entry of src into t.
func (t *Table[K]) AddAll(src *Table[K]) {
	for _, e := range src.entries {
		if e.present && !e.tombstone {
			t.Set(e.key, e.value)
		}
	}
}

// find returns the entry key would occupy (existing or the first open
// slot/tombstone on its probe chain).
func (t *Table[K]) find(key K) entry[K] {
	return t.entries[t.findIndex(key)]
}

func (t *Table[K]) findIndex(key K) int {
	capacity := len(t.entries)
	idx := int(t.hashOf(key)) & (capacity - 1)
	var tombstoneIdx = -1
	for {
		e := &t.entries[idx]
		if !e.present {
			if tombstoneIdx != -1 {
				return tombstoneIdx
			}
			return idx
		}
		if e.tombstone {
			if tombstoneIdx == -1 {
				tombstoneIdx = idx
			}
		} else if e.key == key {
			return idx
		}
		idx = (idx + 1) & (capacity - 1)
	}
}

func nextCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

func (t *Table[K]) grow(newCap int) {
	old := t.entries
	t.entries = make([]entry[K], newCap)
	t.count = 0
	for _, e := range old {
		if e.present && !e.tombstone {
			t.Set(e.key, e.value)
		}
	}
}

// FindStringKey is the interning primitive from spec §4.6: it probes the
// table comparing by (hash, length, bytes) instead of pointer identity —
// the one case where a not-yet-allocated string needs to find its
// already-interned twin before a duplicate object is ever constructed.
// keyChars/keyHash extract the comparable fields of a live key; matches
// reports whether a key's content equals the sought (hash, chars).
func FindStringKey[K comparable](t *Table[K], hash uint32, chars string, keyHash func(K) uint32, keyChars func(K) string) (K, bool) {
	var zero K
	if len(t.entries) == 0 {
		return zero, false
	}
	capacity := len(t.entries)
	idx := int(hash) & (capacity - 1)
	for {
		e := &t.entries[idx]
		if !e.present {
			return zero, false
		}
		if !e.tombstone && keyHash(e.key) == hash && keyChars(e.key) == chars {
			return e.key, true
		}
		idx = (idx + 1) & (capacity - 1)
	}
}
