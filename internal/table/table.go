// Package table implements the open-addressed, string-keyed hash table
// used for the VM's globals. It is hand-rolled rather than backed by Go's
// builtin map because the table's probing and tombstone behavior are
// themselves testable properties of the system (see spec invariant on
// set/get/delete semantics), not an incidental implementation detail.
package table

import "github.com/kristofer/vmscript/internal/value"

const maxLoad = 0.75

// entry is one slot in the table. A nil Key with a Null value is an empty
// slot that has never held a key; a nil Key with a Bool(true) value is a
// tombstone left behind by Delete.
type entry struct {
	key *value.String
	val value.Value
}

// Table is an open-addressed hash table with linear probing, keyed by
// string identity-by-content and sized to keep its load factor at or
// below 0.75.
type Table struct {
	count   int // live entries plus tombstones
	entries []entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Get looks up key and reports whether it was found.
func (t *Table) Get(key *value.String) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Value{}, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return value.Value{}, false
	}
	return e.val, true
}

// Set inserts or overwrites key's value and reports whether the key was
// previously absent.
func (t *Table) Set(key *value.String, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}

	e := t.findEntrySlot(key)
	isNew := e.key == nil
	if isNew && e.val.IsNull() {
		// A brand-new slot, not a reclaimed tombstone: tombstones already
		// counted toward t.count when they were created.
		t.count++
	}
	e.key = key
	e.val = val
	return isNew
}

// Delete removes key, leaving a tombstone behind so later probes past
// this slot still find entries that landed beyond it.
func (t *Table) Delete(key *value.String) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.val = value.Bool(true)
	return true
}

// AddAll copies every live entry of from into t.
func (t *Table) AddAll(from *Table) {
	for i := range from.entries {
		if from.entries[i].key != nil {
			t.Set(from.entries[i].key, from.entries[i].val)
		}
	}
}

func keysEqual(a, b *value.String) bool { return a.Chars == b.Chars }

// findEntry probes entries (a fixed, already-sized slice) for key,
// returning the matching live entry if there is one; otherwise the first
// tombstone it passed, or the empty slot that ended the probe if it
// passed none.
func (t *Table) findEntry(entries []entry, key *value.String) *entry {
	capacity := len(entries)
	index := int(key.Hash) % capacity
	var tombstone *entry
	for {
		e := &entries[index]
		switch {
		case e.key == nil:
			if e.val.IsNull() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		case keysEqual(e.key, key):
			return e
		}
		index = (index + 1) % capacity
	}
}

// findEntrySlot is findEntry over t's own entries. It does not grow the
// table itself: Set grows it beforehand, so the backing array it probes
// is never empty.
func (t *Table) findEntrySlot(key *value.String) *entry {
	return t.findEntry(t.entries, key)
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	for i := range newEntries {
		newEntries[i].val = value.Null
	}

	liveCount := 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.key == nil {
			continue
		}
		dest := t.findEntry(newEntries, old.key)
		dest.key = old.key
		dest.val = old.val
		liveCount++
	}
	t.entries = newEntries
	t.count = liveCount
}
