package tracing

import (
	"context"
	"net"

	"github.com/google/uuid"

	"github.com/penguintech/march-quicd/internal/streamstate"
)

// ConnectionTracker instruments a single connection's lifecycle with spans,
// replacing the teacher's HTTP request/response middleware chain with the
// connection/stream span pairs this engine's callbacks actually produce.
type ConnectionTracker struct {
	engine *TracingEngine
	span   *ConnectionSpan
}

// TrackConnection starts a connection span for a newly accepted or dialed
// connection, identified by its correlation id.
func (te *TracingEngine) TrackConnection(ctx context.Context, id uuid.UUID, remote net.Addr, variant string) *ConnectionTracker {
	return &ConnectionTracker{
		engine: te,
		span:   te.StartConnectionSpan(ctx, id.String(), remote, variant),
	}
}

// TrackStream starts a stream span nested under the connection's span.
func (ct *ConnectionTracker) TrackStream(id streamstate.ID) *StreamTracker {
	direction := "bidirectional"
	if id.IsUnidirectional() {
		direction = "unidirectional"
	}
	return &StreamTracker{
		engine: ct.engine,
		span:   ct.engine.StartStreamSpan(ct.span, uint64(id), direction),
	}
}

// Finish closes the connection span with the given outcome (an
// errs.TransportErrorCode name, or "ok" for a clean close).
func (ct *ConnectionTracker) Finish(outcome string, err error) {
	ct.engine.FinishConnectionSpan(ct.span, outcome, err)
}

// StreamTracker instruments a single stream's lifecycle.
type StreamTracker struct {
	engine *TracingEngine
	span   *StreamSpan
}

// Finish closes the stream span, recording bytes moved in each direction.
func (st *StreamTracker) Finish(bytesSent, bytesReceived int64, err error) {
	st.engine.FinishStreamSpan(st.span, bytesSent, bytesReceived, err)
}
