package bufpool

import "testing"

func TestAcquireReturnsPreallocatedBuffer(t *testing.T) {
	p := New(4, 128, 2)
	buf := p.Acquire(64)
	if cap(*buf) < 128 {
		t.Fatalf("expected preallocated capacity >= 128, got %d", cap(*buf))
	}
	if len(*buf) != 0 {
		t.Fatalf("expected zero length on acquire, got %d", len(*buf))
	}
}

func TestAcquireGrowsWhenNeedExceedsBufferCap(t *testing.T) {
	p := New(2, 16, 1)
	buf := p.Acquire(1000)
	if cap(*buf) < 1000 {
		t.Fatalf("expected capacity >= 1000, got %d", cap(*buf))
	}
}

func TestReleaseRecyclesBuffer(t *testing.T) {
	p := New(1, 64, 0)
	buf := p.Acquire(32)
	*buf = append(*buf, []byte("hello")...)
	p.Release(buf)

	reused := p.Acquire(32)
	if len(*reused) != 0 {
		t.Fatalf("expected recycled buffer to be cleared, got len %d", len(*reused))
	}
}

func TestReleaseDropsWhenPoolFull(t *testing.T) {
	p := New(1, 64, 1)
	a := p.Acquire(10) // drains the one preallocated slot
	b := make([]byte, 0, 64)

	p.Release(a)  // refills the single slot
	p.Release(&b) // pool already full: must not block or panic

	if c := p.Acquire(10); cap(*c) < 64 {
		t.Fatalf("expected a usable buffer after drop, got cap %d", cap(*c))
	}
}

func TestReleaseNilIsNoOp(t *testing.T) {
	p := NewDefault()
	p.Release(nil) // must not panic
}
