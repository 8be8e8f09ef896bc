package runstore

import (
	"testing"

	"lsmkv/pkg/stmt"
)

func buildTestRun(t *testing.T) *Run {
	t.Helper()
	b := NewBuilder(0.01)
	// (key asc, lsn desc), matching how a real flush would produce it.
	b.Add(stmt.New(stmt.KindUpsert, []byte("a"), nil, 5))
	b.Add(stmt.New(stmt.KindReplace, []byte("a"), []byte("a-v1"), 3))
	b.Add(stmt.New(stmt.KindReplace, []byte("b"), []byte("b-v1"), 2))
	b.Add(stmt.New(stmt.KindDelete, []byte("c"), nil, 9))

	run, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return run
}

func TestMayContain(t *testing.T) {
	run := buildTestRun(t)

	if !run.MayContain([]byte("a")) {
		t.Fatalf("expected key %q to possibly be present", "a")
	}
	if run.MayContain([]byte("zzz-not-in-range")) {
		t.Fatalf("expected a key outside the run's range to be rejected without a bloom check")
	}
}

func TestOpenEqualWalksVersionChain(t *testing.T) {
	run := buildTestRun(t)

	it, err := OpenEqual(run, []byte("a"))
	if err != nil {
		t.Fatalf("OpenEqual failed: %v", err)
	}
	defer it.Close()

	first, err := it.NextKey()
	if err != nil || first == nil {
		t.Fatalf("expected a first statement for key %q, err=%v", "a", err)
	}
	if first.Kind != stmt.KindUpsert || first.LSN != 5 {
		t.Fatalf("unexpected first statement: %+v", first)
	}

	second, err := it.NextLSN()
	if err != nil || second == nil {
		t.Fatalf("expected a second statement, err=%v", err)
	}
	if second.Kind != stmt.KindReplace || second.LSN != 3 {
		t.Fatalf("unexpected second statement: %+v", second)
	}

	third, err := it.NextLSN()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != nil {
		t.Fatalf("expected end of version chain, got %+v", third)
	}
}

func TestOpenEqualMissingKey(t *testing.T) {
	run := buildTestRun(t)

	it, err := OpenEqual(run, []byte("zzz"))
	if err != nil {
		t.Fatalf("OpenEqual failed: %v", err)
	}
	defer it.Close()

	s, err := it.NextKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Fatalf("expected no statement for a missing key, got %+v", s)
	}
}
