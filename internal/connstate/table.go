// Package connstate implements the connection state machine of spec.md §3
// ("Connection state") and §4.3: the tagged variant {accepting, open, error,
// closed}, its insertion-ordered stream tables, and the waiter fail-forward
// rule that propagates a latched error to every pending and future waiter.
package connstate

import "github.com/penguintech/march-quicd/internal/streamstate"

// streamTable is an insertion-ordered set of streams keyed by id, used for
// the five tables spec.md §3 names: incoming, connecting, accepting, open,
// closing. Invariant (a) of spec.md §3 ("every stream pointer appears in
// exactly one table") is enforced by callers always removing from the
// source table before inserting into the destination table (see
// Connection.move).
type streamTable struct {
	order []streamstate.ID
	byID  map[streamstate.ID]*streamstate.Stream
}

func newStreamTable() streamTable {
	return streamTable{byID: make(map[streamstate.ID]*streamstate.Stream)}
}

func (t *streamTable) insert(s *streamstate.Stream) {
	if _, exists := t.byID[s.ID()]; exists {
		return
	}
	t.byID[s.ID()] = s
	t.order = append(t.order, s.ID())
}

func (t *streamTable) remove(id streamstate.ID) (*streamstate.Stream, bool) {
	s, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return s, true
}

func (t *streamTable) get(id streamstate.ID) (*streamstate.Stream, bool) {
	s, ok := t.byID[id]
	return s, ok
}

// all returns the table's streams in insertion order. Callers must not
// mutate the returned slice.
func (t *streamTable) all() []*streamstate.Stream {
	out := make([]*streamstate.Stream, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

func (t *streamTable) len() int { return len(t.order) }
