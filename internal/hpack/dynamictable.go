package hpack

// entryOverhead is the fixed per-entry accounting overhead defined by
// RFC 7541 §4.1: "the size of an entry is the sum of its name's length in
// octets, its value's length in octets, and 32".
const entryOverhead = 32

// DynamicEntry is one row of the per-connection HPACK dynamic table.
type DynamicEntry struct {
	Name  string
	Value string
}

func (e DynamicEntry) size() int {
	return len(e.Name) + len(e.Value) + entryOverhead
}

// DynamicTable is the HPACK per-connection FIFO of indexed (name, value)
// entries, bounded by a byte budget (spec.md §3, §4.1, §9 "HPACK dynamic
// table pressure"). Entries are stored newest-first so that dynamic index 0
// (wire index 62, right after the 61 static entries) is always the most
// recently inserted entry, per RFC 7541 §2.3.2.
type DynamicTable struct {
	entries  []DynamicEntry
	size     int
	maxSize  int
}

// NewDynamicTable constructs an empty table with the given byte budget
// (default 4096 per spec.md §4.1).
func NewDynamicTable(maxSize int) *DynamicTable {
	return &DynamicTable{maxSize: maxSize}
}

// Len returns the number of entries currently held.
func (t *DynamicTable) Len() int {
	return len(t.entries)
}

// Size returns the total accounted byte size of all entries.
func (t *DynamicTable) Size() int {
	return t.size
}

// MaxSize returns the current byte budget.
func (t *DynamicTable) MaxSize() int {
	return t.maxSize
}

// SetMaxSize changes the byte budget, evicting from the tail until the
// table fits (spec.md §9 "Evict from the tail on each insert until capacity
// >= 0").
func (t *DynamicTable) SetMaxSize(maxSize int) {
	t.maxSize = maxSize
	t.evictToFit()
}

// Insert adds a new entry at the front (most-recently-inserted position),
// evicting from the tail as needed to respect the byte budget. An entry
// larger than the entire budget results in an empty table, per RFC 7541
// §4.4.
func (t *DynamicTable) Insert(name, value string) {
	entry := DynamicEntry{Name: name, Value: value}
	t.entries = append([]DynamicEntry{entry}, t.entries...)
	t.size += entry.size()
	t.evictToFit()
}

func (t *DynamicTable) evictToFit() {
	for t.size > t.maxSize && len(t.entries) > 0 {
		last := t.entries[len(t.entries)-1]
		t.entries = t.entries[:len(t.entries)-1]
		t.size -= last.size()
	}
}

// At returns the entry at dynamic-table index idx (0-based, 0 = most
// recently inserted).
func (t *DynamicTable) At(idx int) (DynamicEntry, bool) {
	if idx < 0 || idx >= len(t.entries) {
		return DynamicEntry{}, false
	}
	return t.entries[idx], true
}

// Lookup resolves a 0-based dynamic-table index into name and, if
// wantValue, value. It mirrors the original's table.lookup(index, &name,
// &value) contract used by decode_header.
func (t *DynamicTable) Lookup(idx int, wantValue bool) (name, value string, ok bool) {
	e, found := t.At(idx)
	if !found {
		return "", "", false
	}
	if wantValue {
		return e.Name, e.Value, true
	}
	return e.Name, "", true
}
