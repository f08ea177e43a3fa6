// Package table implements the open-addressed, linear-probing hash table
// specified by §4.5: 75%-load-factor growth, tombstone-on-delete, and a
// content-addressed FindString lookup. The VM's string-interning set is
// the one collection in this runtime whose semantics (weak-set sweep
// during GC, lookup-by-content before an ObjString even exists) depend on
// this exact shape, so it is the only caller; instance fields and class
// method tables use plain Go maps instead (see lang/value/class.go), since
// nothing about their behavior depends on open addressing.
package table

import "github.com/emberlang/ember/lang/value"

const maxLoad = 0.75

type entry[V any] struct {
	key       *value.ObjString
	val       V
	tombstone bool
}

// Table maps interned strings to arbitrary values. Keys are compared by
// pointer identity, since every *value.ObjString reaching a Table is
// assumed already interned. Capacity starts at 8 on first insert and
// doubles whenever the load factor would exceed 75%; deleting leaves a
// tombstone behind so later probes can still find keys on the far side of
// it, and tombstones are dropped for good on the next grow.
type Table[V any] struct {
	entries []entry[V]
	count   int // live entries + tombstones, drives the load-factor check
	live    int
}

// New returns an empty table.
func New[V any]() *Table[V] {
	return &Table[V]{}
}

func growCapacity(old int) int {
	if old < 8 {
		return 8
	}
	return old * 2
}

func findEntry[V any](entries []entry[V], key *value.ObjString) *entry[V] {
	capacity := uint32(len(entries))
	idx := key.Hash % capacity
	var tombstone *entry[V]
	for {
		e := &entries[idx]
		switch {
		case e.key == nil && !e.tombstone:
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.key == nil && e.tombstone:
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		idx = (idx + 1) % capacity
	}
}

func (t *Table[V]) adjustCapacity(capacity int) {
	newEntries := make([]entry[V], capacity)
	live := 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dest := findEntry(newEntries, e.key)
		dest.key = e.key
		dest.val = e.val
		live++
	}
	t.entries = newEntries
	t.count = live
	t.live = live
}

// Set installs val under key, growing the table first if needed. It
// reports whether key was not already present.
func (t *Table[V]) Set(key *value.ObjString, val V) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}
	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew {
		if !e.tombstone {
			t.count++
		}
		t.live++
	}
	e.key = key
	e.val = val
	e.tombstone = false
	return isNew
}

// Get looks up key, reporting whether it was present.
func (t *Table[V]) Get(key *value.ObjString) (V, bool) {
	var zero V
	if len(t.entries) == 0 {
		return zero, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return zero, false
	}
	return e.val, true
}

// Delete removes key, leaving a tombstone in its place, and reports
// whether key was present.
func (t *Table[V]) Delete(key *value.ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.tombstone = true
	t.live--
	return true
}

// Range calls fn for every live entry, stopping early if fn returns false.
func (t *Table[V]) Range(fn func(key *value.ObjString, val V) bool) {
	for i := range t.entries {
		if t.entries[i].key == nil {
			continue
		}
		if !fn(t.entries[i].key, t.entries[i].val) {
			return
		}
	}
}

// Len returns the number of live (non-tombstone) entries.
func (t *Table[V]) Len() int { return t.live }

// FindString looks up an interned string by content without needing an
// *value.ObjString to compare against, so the VM can avoid allocating one
// on every string literal load: it only allocates on an actual miss.
func FindString[V any](t *Table[V], chars string, hash uint32) *value.ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	idx := hash % capacity
	for {
		e := &t.entries[idx]
		switch {
		case e.key == nil && !e.tombstone:
			return nil
		case e.key != nil && e.key.Hash == hash && e.key.Chars == chars:
			return e.key
		}
		idx = (idx + 1) % capacity
	}
}

// SweepKeys drops every entry whose key fails keep, leaving a tombstone in
// its place. The VM's string-interning table is a weak set with respect to
// the GC: it must not by itself keep an otherwise-unreachable string
// alive, so it is swept this way right before the general object sweep.
func SweepKeys[V any](t *Table[V], keep func(*value.ObjString) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !keep(e.key) {
			e.key = nil
			e.tombstone = true
			t.live--
		}
	}
}
