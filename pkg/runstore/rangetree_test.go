package runstore

import "testing"

func TestFindByKeyUnbounded(t *testing.T) {
	rt := NewRangeTree()
	rg := &Range{Begin: nil, End: nil}
	rt.AddRange(rg)

	if got := rt.FindByKey([]byte("anything")); got != rg {
		t.Fatalf("expected the single unbounded range to cover every key")
	}
}

func TestFindByKeyPartitioned(t *testing.T) {
	rt := NewRangeTree()
	low := &Range{Begin: nil, End: []byte("m")}
	high := &Range{Begin: []byte("m"), End: nil}
	rt.AddRange(low)
	rt.AddRange(high)

	if got := rt.FindByKey([]byte("a")); got != low {
		t.Fatalf("expected key %q to fall in the low range", "a")
	}
	if got := rt.FindByKey([]byte("m")); got != high {
		t.Fatalf("expected key %q to fall in the high range (End is exclusive)", "m")
	}
	if got := rt.FindByKey([]byte("z")); got != high {
		t.Fatalf("expected key %q to fall in the high range", "z")
	}
}

func TestSlicePinUnpin(t *testing.T) {
	s := NewSlice(nil, nil, nil)
	s.Pin()
	s.Pin()
	s.Unpin()
	if s.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", s.RefCount())
	}
}
