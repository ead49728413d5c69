package streambuf

import "testing"

func TestGetPutBasic(t *testing.T) {
	p := NewPool(4096, 2)
	b1 := p.Get()
	if b1 == nil || b1.Cap() != 4096 {
		t.Fatalf("Get() = %v", b1)
	}
	if p.Outstanding() != 1 {
		t.Fatalf("Outstanding() = %d, want 1", p.Outstanding())
	}
	p.Put(b1)
	if p.Outstanding() != 0 || p.Idle() != 1 {
		t.Fatalf("after Put: outstanding=%d idle=%d", p.Outstanding(), p.Idle())
	}
}

func TestGetFailsAtMax(t *testing.T) {
	p := NewPool(1024, 1)
	b1 := p.Get()
	if b1 == nil {
		t.Fatal("first Get() should succeed")
	}
	if b2 := p.Get(); b2 != nil {
		t.Fatal("second Get() should fail while outstanding == max_buffers")
	}
}

func TestSetMaxBuffersShrinkEvictsIdle(t *testing.T) {
	p := NewPool(1024, 4)
	bufs := make([]*Buffer, 4)
	for i := range bufs {
		bufs[i] = p.Get()
	}
	for _, b := range bufs {
		p.Put(b)
	}
	if p.Idle() != 4 {
		t.Fatalf("Idle() = %d, want 4", p.Idle())
	}
	p.SetMaxBuffers(2)
	if p.Idle() != 2 {
		t.Fatalf("after shrink Idle() = %d, want 2", p.Idle())
	}
}

func TestGetAfterSetMaxBuffersOneWithOutstandingReturnsNil(t *testing.T) {
	p := NewPool(1024, 4)
	b1 := p.Get()
	if b1 == nil {
		t.Fatal("Get() should succeed initially")
	}
	p.SetMaxBuffers(1)
	if b2 := p.Get(); b2 != nil {
		t.Fatal("Get() after SetMaxBuffers(1) with one outstanding should fail")
	}
}

func TestSetBufferSizeClearsIdleOnChange(t *testing.T) {
	p := NewPool(1024, 2)
	b := p.Get()
	p.Put(b)
	if p.Idle() != 1 {
		t.Fatalf("Idle() = %d, want 1", p.Idle())
	}
	p.SetBufferSize(2048)
	if p.Idle() != 0 {
		t.Fatalf("Idle() after SetBufferSize change = %d, want 0", p.Idle())
	}
}

func TestPutDifferentSizeIsDropped(t *testing.T) {
	p := NewPool(1024, 2)
	oversized := newBuffer(2048)
	p.outstanding++
	p.Put(oversized)
	if p.Idle() != 0 {
		t.Fatalf("Idle() = %d, want 0 (mismatched size dropped)", p.Idle())
	}
}

func TestAppendTruncatesToCapacity(t *testing.T) {
	b := newBuffer(4)
	n := b.Append([]byte{1, 2, 3, 4, 5})
	if n != 4 || b.Len() != 4 {
		t.Fatalf("Append() = %d, Len() = %d", n, b.Len())
	}
}
