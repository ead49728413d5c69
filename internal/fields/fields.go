// Package fields implements the ordered HTTP header collection described in
// spec.md §3: insertion order is preserved, names compare case-insensitively
// while the inserted casing is kept, and each entry carries an indexing
// hint used by the HPACK encoder.
package fields

import (
	"fmt"
	"strings"
)

// Index is the HPACK indexing hint for an entry.
type Index uint8

const (
	// IndexDefault allows the encoder to add the entry to the dynamic
	// table (incremental indexing).
	IndexDefault Index = iota
	// IndexNever instructs the encoder to use literal-never-indexed
	// encoding, e.g. for sensitive header values.
	IndexNever
)

// Field is a single (name, value) header record.
type Field struct {
	Name  string
	Value string
	Index Index
}

// CStr returns the canonical "name: value" diagnostic string.
func (f Field) CStr() string {
	return f.Name + ": " + f.Value
}

// Fields is an ordered, case-insensitive-by-name collection of header
// records.
type Fields struct {
	entries []Field
}

// New returns an empty Fields collection.
func New() *Fields {
	return &Fields{}
}

// Len returns the number of entries.
func (f *Fields) Len() int {
	return len(f.entries)
}

// At returns the entry at position i in insertion order.
func (f *Fields) At(i int) Field {
	return f.entries[i]
}

// All returns the entries in insertion order. The returned slice must not be
// mutated by the caller.
func (f *Fields) All() []Field {
	return f.entries
}

func eqFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Insert appends a new entry, preserving any existing entries with the same
// name.
func (f *Fields) Insert(name, value string) {
	f.InsertIndexed(name, value, IndexDefault)
}

// InsertIndexed appends a new entry with an explicit indexing hint.
func (f *Fields) InsertIndexed(name, value string, index Index) {
	f.entries = append(f.entries, Field{Name: name, Value: value, Index: index})
}

// Assign removes all prior entries with name, then appends a single new
// entry, per spec.md §3 "assign(name, value) removes all prior entries with
// that name, then appends".
func (f *Fields) Assign(name, value string) {
	f.AssignIndexed(name, value, IndexDefault)
}

// AssignIndexed is Assign with an explicit indexing hint.
func (f *Fields) AssignIndexed(name, value string, index Index) {
	kept := f.entries[:0:0]
	for _, e := range f.entries {
		if !eqFold(e.Name, name) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, Field{Name: name, Value: value, Index: index})
	f.entries = kept
}

// Get returns the value of the first entry with name, and whether it was
// found.
func (f *Fields) Get(name string) (string, bool) {
	for _, e := range f.entries {
		if eqFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// EqualRange returns the contiguous run of entries with name, in the order
// they were inserted. Per spec.md §3 this is defined as the "contiguous run
// of entries with that name" — Assign guarantees contiguity by construction,
// but EqualRange scans defensively rather than assuming it.
func (f *Fields) EqualRange(name string) []Field {
	var out []Field
	for _, e := range f.entries {
		if eqFold(e.Name, name) {
			out = append(out, e)
		}
	}
	return out
}

// Clear removes all entries.
func (f *Fields) Clear() {
	f.entries = f.entries[:0]
}

// String renders all entries as "name: value" lines, for diagnostics.
func (f *Fields) String() string {
	var b strings.Builder
	for i, e := range f.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprint(&b, e.CStr())
	}
	return b.String()
}
