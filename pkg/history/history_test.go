package history

import (
	"testing"

	"lsmkv/pkg/stmt"
)

func TestEmptyHistoryIsNotTerminal(t *testing.T) {
	h := New()
	if h.IsTerminal() {
		t.Fatalf("an empty history must never be terminal")
	}
}

func TestTerminalAfterReplace(t *testing.T) {
	h := New()
	h.Append(SourceMem, stmt.New(stmt.KindUpsert, []byte("k"), nil, 3))
	if h.IsTerminal() {
		t.Fatalf("an upsert-only history must not be terminal")
	}
	h.Append(SourceRun, stmt.New(stmt.KindReplace, []byte("k"), []byte("v"), 1))
	if !h.IsTerminal() {
		t.Fatalf("a history ending in Replace must be terminal")
	}
}

func TestCleanupUnrefsRunStatementsOnly(t *testing.T) {
	h := New()
	runStmt := stmt.New(stmt.KindUpsert, []byte("k"), nil, 2)
	memStmt := stmt.New(stmt.KindReplace, []byte("k"), []byte("v"), 1)

	h.Append(SourceRun, runStmt)
	h.Append(SourceMem, memStmt)

	h.Cleanup()

	if got := runStmt.RefCountForTest(); got != 0 {
		t.Fatalf("expected run-sourced statement unreffed to 0, got %d", got)
	}
	if got := memStmt.RefCountForTest(); got != 1 {
		t.Fatalf("mem-sourced statement must not be unreffed by history cleanup, got %d", got)
	}
	if !h.Empty() {
		t.Fatalf("Cleanup must clear the node list")
	}
}
