package upsert

import (
	"encoding/binary"
	"errors"
	"testing"

	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/stmt"
)

func int64Bytes(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func TestApplyIncrementOnNilBase(t *testing.T) {
	delta := stmt.New(stmt.KindUpsert, []byte("k"), nil, 5)
	delta.UpsertOps = EncodeOps([]Op{{Code: OpIncrement, Operand: int64Bytes(3)}})

	result, err := Apply(delta, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := int64(binary.LittleEndian.Uint64(result.Value))
	if got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if result.LSN != delta.LSN {
		t.Fatalf("upsert must keep the delta's own LSN")
	}
}

func TestApplyIncrementOnExistingBase(t *testing.T) {
	base := stmt.New(stmt.KindReplace, []byte("k"), int64Bytes(10), 1)
	delta := stmt.New(stmt.KindUpsert, []byte("k"), nil, 2)
	delta.UpsertOps = EncodeOps([]Op{{Code: OpIncrement, Operand: int64Bytes(5)}})

	result, err := Apply(delta, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := int64(binary.LittleEndian.Uint64(result.Value))
	if got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
}

func TestApplySet(t *testing.T) {
	delta := stmt.New(stmt.KindUpsert, []byte("k"), nil, 1)
	delta.UpsertOps = EncodeOps([]Op{{Code: OpSet, Operand: []byte("new")}})

	result, err := Apply(delta, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Value) != "new" {
		t.Fatalf("expected %q, got %q", "new", result.Value)
	}
}

func TestApplyAppend(t *testing.T) {
	base := stmt.New(stmt.KindReplace, []byte("k"), []byte("foo"), 1)
	delta := stmt.New(stmt.KindUpsert, []byte("k"), nil, 2)
	delta.UpsertOps = EncodeOps([]Op{{Code: OpAppend, Operand: []byte("bar")}})

	result, err := Apply(delta, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Value) != "foobar" {
		t.Fatalf("expected %q, got %q", "foobar", result.Value)
	}
}

func TestApplyMalformedOps(t *testing.T) {
	delta := stmt.New(stmt.KindUpsert, []byte("k"), nil, 1)
	delta.UpsertOps = []byte{0x01, 0x02}

	if _, err := Apply(delta, nil); !errors.Is(err, dberrors.ErrUpsertFailure) {
		t.Fatalf("expected an ErrUpsertFailure, got %v", err)
	}
}
