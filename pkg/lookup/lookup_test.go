package lookup

import (
	"testing"

	"lsmkv/pkg/config"
	"lsmkv/pkg/index"
	"lsmkv/pkg/readview"
	"lsmkv/pkg/runstore"
	"lsmkv/pkg/stmt"
	"lsmkv/pkg/txn"
	"lsmkv/pkg/upsert"
)

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	cfg := config.Default()
	return index.New(cfg, nil)
}

func addRun(t *testing.T, idx *index.Index, statements ...*stmt.Statement) {
	t.Helper()
	b := runstore.NewBuilder(0.01)
	for _, s := range statements {
		b.Add(s)
	}
	run, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build run: %v", err)
	}
	rg := idx.Ranges.FindByKey(statements[0].Key)
	rg.Slices = append(rg.Slices, runstore.NewSlice(run, nil, nil))
}

func TestPointLookupWriteSetWins(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	if err := idx.Mems.Put(stmt.New(stmt.KindReplace, key, []byte("mem-value"), 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx := txn.New()
	tx.Put(key, []byte("txw-value"), 2)

	result, err := PointLookup(idx, tx, readview.Latest(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || string(result.Value) != "txw-value" {
		t.Fatalf("expected the write set's value to win, got %+v", result)
	}
}

func TestPointLookupCacheHit(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	idx.Cache.Put(key, []byte("cached-value"), byte(stmt.KindReplace), 1, true)

	result, err := PointLookup(idx, nil, readview.Latest(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || string(result.Value) != "cached-value" {
		t.Fatalf("expected the cached value, got %+v", result)
	}
}

func TestPointLookupMemOnly(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	if err := idx.Mems.Put(stmt.New(stmt.KindReplace, key, []byte("mem-value"), 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := PointLookup(idx, nil, readview.Latest(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || string(result.Value) != "mem-value" {
		t.Fatalf("expected the mem value, got %+v", result)
	}
}

func TestPointLookupFallsThroughToRun(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	addRun(t, idx, stmt.New(stmt.KindReplace, key, []byte("run-value"), 1))

	result, err := PointLookup(idx, nil, readview.Latest(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || string(result.Value) != "run-value" {
		t.Fatalf("expected the run value, got %+v", result)
	}
}

func TestPointLookupDeleteIsAbsent(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	if err := idx.Mems.Put(stmt.New(stmt.KindDelete, key, nil, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := PointLookup(idx, nil, readview.Latest(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected no value for a deleted key, got %+v", result)
	}
}

func TestPointLookupUpsertFoldsAcrossMemAndRun(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	addRun(t, idx, stmt.New(stmt.KindReplace, key, intBytes(10), 1))

	incr := stmt.New(stmt.KindUpsert, key, nil, 2)
	incr.UpsertOps = upsert.EncodeOps([]upsert.Op{{Code: upsert.OpIncrement, Operand: intBytes(5)}})
	if err := idx.Mems.Put(incr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := PointLookup(idx, nil, readview.Latest(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatalf("expected a folded result, got nil")
	}
	if got := decodeInt(result.Value); got != 15 {
		t.Fatalf("expected 10+5=15, got %d", got)
	}
}

func TestPointLookupDoesNotPublishUnderSnapshotView(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	if err := idx.Mems.Put(stmt.New(stmt.KindReplace, key, []byte("v"), 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := PointLookup(idx, nil, readview.At(1), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, _, ok := idx.Cache.Get(key); ok {
		t.Fatalf("a lookup taken at a historical read view must not publish into the cache")
	}
}

func TestPointLookupPublishesUnderLatestView(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	if err := idx.Mems.Put(stmt.New(stmt.KindReplace, key, []byte("v"), 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := PointLookup(idx, nil, readview.Latest(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, _, ok := idx.Cache.Get(key); !ok {
		t.Fatalf("expected a latest-view lookup to publish into the cache")
	}
}

func TestPointLookupPublishesUnderTxWhenNoRaceOccurs(t *testing.T) {
	idx := newTestIndex(t)
	key := []byte("k")

	if err := idx.Mems.Put(stmt.New(stmt.KindReplace, key, []byte("v"), 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx := txn.New()
	if _, err := PointLookup(idx, tx, readview.Latest(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, _, ok := idx.Cache.Get(key); !ok {
		t.Fatalf("expected a race-free tracked lookup to still publish into the cache")
	}
}

func intBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decodeInt(b []byte) int64 {
	var v int64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}
