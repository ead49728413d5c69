package streamstate

import "fmt"

// State enumerates the stream lifecycle of spec.md §3: "idle → open →
// half_closed_{local,remote} → closed; plus reset_sent, reset_received."
// Style grounded on the teacher's internal/circuitbreaker State enum +
// String() method pattern.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
	StateResetSent
	StateResetReceived
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateHalfClosedLocal:
		return "half_closed_local"
	case StateHalfClosedRemote:
		return "half_closed_remote"
	case StateClosed:
		return "closed"
	case StateResetSent:
		return "reset_sent"
	case StateResetReceived:
		return "reset_received"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateResetSent || s == StateResetReceived
}

// CanAcceptData reports whether data may still be delivered on this stream,
// per spec.md §3 invariant (b): "new data arriving in state closed or
// reset_received is rejected with stream_reset".
func (s State) CanAcceptData() bool {
	return s != StateClosed && s != StateResetReceived
}
