// Package streambuf implements the fixed-capacity stream buffer and the
// pool that caches idle buffers described in spec.md §3. The pool bounds the
// number of buffers outstanding at once (checked out but not yet returned)
// against max_buffers, and caches up to max_buffers idle buffers of a
// nominal buffer_size for reuse.
package streambuf

import "context"

// Buffer is a flat, fixed-capacity byte region. Unlike a growable slice, its
// capacity never changes for the lifetime of the buffer.
type Buffer struct {
	data []byte
}

func newBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, 0, size)}
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Len returns the number of bytes currently stored.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the stored bytes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset empties the buffer without releasing its capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Append writes p into the buffer, truncating to the remaining capacity and
// returning the number of bytes actually appended.
func (b *Buffer) Append(p []byte) int {
	room := cap(b.data) - len(b.data)
	if room <= 0 {
		return 0
	}
	if len(p) > room {
		p = p[:room]
	}
	b.data = append(b.data, p...)
	return len(p)
}

// Pool caches up to maxBuffers idle buffers of a nominal bufferSize, and
// bounds the number of buffers simultaneously checked out to maxBuffers.
// Pool is not safe for concurrent use; callers serialize access the same
// way the engine mutex serializes every other piece of transport state
// (spec.md §5 "Shared resources").
type Pool struct {
	bufferSize  int
	maxBuffers  int
	outstanding int
	idle        []*Buffer
	// released is signaled (non-blocking best-effort) whenever Put frees
	// a slot, so GetContext can wake up waiters without polling.
	released chan struct{}
}

// NewPool constructs a pool with the given nominal buffer size and maximum
// number of outstanding+idle buffers.
func NewPool(bufferSize, maxBuffers int) *Pool {
	return &Pool{
		bufferSize: bufferSize,
		maxBuffers: maxBuffers,
		released:   make(chan struct{}, 1),
	}
}

// Get returns an idle buffer, or allocates a new one while
// outstanding < maxBuffers, else returns nil (spec.md §3: "get returns an
// idle buffer or allocates a new one while outstanding < max_buffers, else
// fails").
func (p *Pool) Get() *Buffer {
	if p.outstanding >= p.maxBuffers {
		return nil
	}
	p.outstanding++
	if n := len(p.idle); n > 0 {
		buf := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return buf
	}
	return newBuffer(p.bufferSize)
}

// GetContext is Get but blocks (respecting ctx) until a slot is admitted,
// for callers willing to wait for backpressure to clear instead of failing
// immediately.
func (p *Pool) GetContext(ctx context.Context) (*Buffer, error) {
	for {
		if buf := p.Get(); buf != nil {
			return buf, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.released:
		}
	}
}

// Put returns buf to the pool. If it matches the current nominal size and
// the idle list is below maxBuffers it is retained for reuse, otherwise
// dropped (spec.md §3).
func (p *Pool) Put(buf *Buffer) {
	p.outstanding--
	if buf.Cap() == p.bufferSize && len(p.idle) < p.maxBuffers {
		buf.Reset()
		p.idle = append(p.idle, buf)
	}
	select {
	case p.released <- struct{}{}:
	default:
	}
}

// Outstanding returns the number of buffers currently checked out.
func (p *Pool) Outstanding() int {
	return p.outstanding
}

// Idle returns the number of idle buffers cached.
func (p *Pool) Idle() int {
	return len(p.idle)
}

// SetBufferSize changes the nominal buffer size, clearing the idle list if
// the size actually changes (spec.md §3).
func (p *Pool) SetBufferSize(size int) {
	if size == p.bufferSize {
		return
	}
	p.bufferSize = size
	p.idle = nil
}

// SetMaxBuffers changes the maximum outstanding+idle count, evicting excess
// idle buffers immediately. Buffers already checked out cannot be revoked,
// so outstanding alone may still exceed the new max until callers return
// them (spec.md §3, §8 invariant 5).
func (p *Pool) SetMaxBuffers(max int) {
	p.maxBuffers = max
	for len(p.idle) > 0 && p.outstanding+len(p.idle) > p.maxBuffers {
		p.idle = p.idle[:len(p.idle)-1]
	}
}
