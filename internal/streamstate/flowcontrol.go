package streamstate

// DefaultWindow is the default flow-control window for a new stream
// (spec.md §3: "flow-control windows (inbound, outbound; signed, default
// 65535)").
const DefaultWindow int64 = 65535

// Window is a signed flow-control counter. It is signed because a peer MAX_
// STREAM_DATA update can, in principle, arrive before all previously-sent
// bytes are accounted for, temporarily driving the counter negative in the
// original's bookkeeping; this core preserves that by using int64 rather
// than clamping at zero.
type Window struct {
	limit    int64 // total bytes the peer/we have granted so far
	consumed int64 // total bytes sent/received so far
}

// NewWindow returns a Window starting at initial.
func NewWindow(initial int64) *Window {
	return &Window{limit: initial}
}

// Available returns the number of bytes that may still be sent/received
// before the window is exhausted. May be negative transiently (see Window
// doc comment).
func (w *Window) Available() int64 {
	return w.limit - w.consumed
}

// Consume records n bytes sent/received against the window.
func (w *Window) Consume(n int64) {
	w.consumed += n
}

// Grant raises the window's limit to newLimit if it is larger than the
// current limit (MAX_STREAM_DATA / MAX_DATA updates are monotonic).
func (w *Window) Grant(newLimit int64) {
	if newLimit > w.limit {
		w.limit = newLimit
	}
}

// Priority is the HTTP/2-style stream priority carried by spec.md §3:
// "priority (dependency id, weight 1-256, exclusive flag)".
type Priority struct {
	DependencyID ID
	Weight       uint16 // 1..256; wire form is Weight-1 in a single byte
	Exclusive    bool
}

// DefaultPriority is the priority assigned to a stream that never receives
// an explicit PRIORITY frame or header.
var DefaultPriority = Priority{DependencyID: 0, Weight: 16, Exclusive: false}
