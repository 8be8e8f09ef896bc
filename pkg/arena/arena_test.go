package arena

import "testing"

func TestAllocAndDup(t *testing.T) {
	a := New(16)

	b := a.Alloc(4)
	if len(b) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(b))
	}

	src := []byte("hello")
	dup := a.Dup(src)
	if string(dup) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", dup)
	}
	dup[0] = 'H'
	if src[0] != 'h' {
		t.Fatalf("Dup must not alias the source slice")
	}
}

func TestMarkReset(t *testing.T) {
	a := New(8)
	a.Alloc(4)
	mark := a.Mark()
	a.Alloc(100)
	if a.Used() <= int(mark) {
		t.Fatalf("expected Used to grow past mark")
	}
	a.Reset(mark)
	if a.Used() != int(mark) {
		t.Fatalf("Reset did not rewind to mark: used=%d mark=%d", a.Used(), mark)
	}
}

func TestAllocGrowsPastInitialCapacity(t *testing.T) {
	a := New(1)
	b := a.Alloc(64)
	if len(b) != 64 {
		t.Fatalf("expected Alloc to grow past the initial chunk size, got len %d", len(b))
	}
}
