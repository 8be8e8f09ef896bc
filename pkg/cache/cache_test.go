package cache

import "testing"

func TestPutGetRoundTrip(t *testing.T) {
	c := New(2)
	c.Put([]byte("k"), []byte("v"), 0, 7, true)

	value, kind, lsn, present, ok := c.Get([]byte("k"))
	if !ok || !present {
		t.Fatalf("expected a present hit, got ok=%v present=%v", ok, present)
	}
	if string(value) != "v" || kind != 0 || lsn != 7 {
		t.Fatalf("unexpected entry: value=%q kind=%d lsn=%d", value, kind, lsn)
	}
}

func TestGetMiss(t *testing.T) {
	c := New(2)
	if _, _, _, _, ok := c.Get([]byte("missing")); ok {
		t.Fatalf("expected a miss")
	}
}

func TestNegativeMarker(t *testing.T) {
	c := New(2)
	c.Put([]byte("k"), nil, 0, 9, false)

	_, _, lsn, present, ok := c.Get([]byte("k"))
	if !ok {
		t.Fatalf("expected a hit for the negative marker")
	}
	if present {
		t.Fatalf("expected present=false for a recorded absence")
	}
	if lsn != 9 {
		t.Fatalf("expected lsn 9, got %d", lsn)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put([]byte("a"), []byte("1"), 0, 1, true)
	c.Put([]byte("b"), []byte("2"), 0, 1, true)

	// Touch "a" so "b" becomes the least recently used entry.
	c.Get([]byte("a"))

	c.Put([]byte("c"), []byte("3"), 0, 1, true)

	if _, _, _, _, ok := c.Get([]byte("b")); ok {
		t.Fatalf("expected \"b\" to have been evicted")
	}
	if _, _, _, _, ok := c.Get([]byte("a")); !ok {
		t.Fatalf("expected \"a\" to still be cached")
	}
	if c.Len() != 2 {
		t.Fatalf("expected cache size to stay at capacity, got %d", c.Len())
	}
}
