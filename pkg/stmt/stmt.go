// Package stmt defines the tuple shape shared by every history source:
// the transaction write set, the cache, the mem-tree list, and run slices.
package stmt

import "sync/atomic"

// Kind distinguishes a terminal statement (one that fully determines the
// tuple's value on its own) from a delta that must be folded onto an
// older statement to produce a value.
type Kind uint8

const (
	// KindReplace overwrites whatever came before it; a Replace always
	// terminates history materialization.
	KindReplace Kind = iota
	// KindInsert is a Replace with an additional "key must not already
	// exist" precondition enforced at write time; by the time a lookup
	// sees it in history it behaves exactly like Replace.
	KindInsert
	// KindDelete marks the key absent as of this LSN; it terminates
	// history materialization and yields a nil tuple.
	KindDelete
	// KindUpsert is a delta: it must be folded onto the next older
	// statement in history via pkg/upsert before it can be returned.
	KindUpsert
)

func (k Kind) String() string {
	switch k {
	case KindReplace:
		return "replace"
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	case KindUpsert:
		return "upsert"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether a statement of this kind fully determines
// the tuple's value without needing an older statement underneath it.
func (k Kind) IsTerminal() bool {
	return k != KindUpsert
}

// Statement is one versioned write to a key: source-agnostic, so the
// same type flows out of the write set, the cache, mem scans and run
// scans alike.
type Statement struct {
	Kind  Kind
	Key   []byte
	Value []byte
	LSN   uint64

	// UpsertOps carries the delta operations for a KindUpsert statement,
	// consumed by pkg/upsert.Apply. It is nil for every other Kind.
	UpsertOps []byte

	refs *atomic.Int32
}

// New allocates a fresh, refcounted Statement with a refcount of one.
// Each statement read out of a run is a new Statement of its own;
// statements materialized from a mem must be arena-duplicated instead,
// since mem memory has no refcount protection of its own.
func New(kind Kind, key, value []byte, lsn uint64) *Statement {
	s := &Statement{Kind: kind, Key: key, Value: value, LSN: lsn}
	s.refs = new(atomic.Int32)
	s.refs.Store(1)
	return s
}

// Ref increments the statement's refcount and returns it, for callers
// that hand the same statement to more than one owner.
func (s *Statement) Ref() *Statement {
	if s == nil {
		return nil
	}
	s.refs.Add(1)
	return s
}

// Unref decrements the statement's refcount. It never frees Go memory
// (the GC owns that); it exists so the lifetime of run-sourced
// statements is tracked the way a C engine would free tuple memory at
// refcount zero.
func (s *Statement) Unref() {
	if s == nil {
		return
	}
	s.refs.Add(-1)
}

// RefCountForTest exposes the current refcount for test assertions.
func (s *Statement) RefCountForTest() int32 {
	return s.refs.Load()
}

// Dup returns a value-identical statement carrying a fresh refcount of
// one, with Key/Value copied into dst via the arena. Used to detach a
// statement from a mem-tree source that may be rotated away or freed
// concurrently with the rest of the lookup.
func (s *Statement) Dup(copyBytes func(src []byte) []byte) *Statement {
	if s == nil {
		return nil
	}
	dst := New(s.Kind, copyBytes(s.Key), copyBytes(s.Value), s.LSN)
	dst.UpsertOps = copyBytes(s.UpsertOps)
	return dst
}
