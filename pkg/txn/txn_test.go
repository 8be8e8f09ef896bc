package txn

import "testing"

func TestWriteSetGet(t *testing.T) {
	tx := New()
	tx.Put([]byte("k"), []byte("v"), 1)

	s, ok := tx.Get([]byte("k"))
	if !ok {
		t.Fatalf("expected a write-set hit")
	}
	if string(s.Value) != "v" {
		t.Fatalf("expected value %q, got %q", "v", s.Value)
	}

	if _, ok := tx.Get([]byte("missing")); ok {
		t.Fatalf("expected a write-set miss for an untouched key")
	}
}

func TestTrackerUnchanged(t *testing.T) {
	tr := NewTracker()
	key := []byte("k")

	gen := tr.Track(key)
	if !tr.Unchanged(key, gen) {
		t.Fatalf("expected Unchanged to hold before any write")
	}

	tr.Bump(key)
	if tr.Unchanged(key, gen) {
		t.Fatalf("expected Unchanged to fail after a concurrent write")
	}
}
