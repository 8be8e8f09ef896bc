package runstore

import "sync/atomic"

// Slice is a run restricted to a range's key bounds, refcounted so that
// a lookup can pin every slice in a range before scanning any of them:
// once pinned, compaction cannot reclaim the underlying run out from
// under an in-flight scan.
type Slice struct {
	Run      *Run
	RangeMin []byte
	RangeMax []byte

	refs atomic.Int32
}

// NewSlice wraps run for the given range bounds with a refcount of zero.
func NewSlice(run *Run, rangeMin, rangeMax []byte) *Slice {
	return &Slice{Run: run, RangeMin: rangeMin, RangeMax: rangeMax}
}

// Pin increments the slice's refcount, making it safe to scan.
func (s *Slice) Pin() {
	s.refs.Add(1)
}

// Unpin decrements the slice's refcount. Once it reaches zero a
// compaction waiting on this slice is free to drop it.
func (s *Slice) Unpin() {
	s.refs.Add(-1)
}

// RefCount reports the current pin count, for tests and compaction
// bookkeeping.
func (s *Slice) RefCount() int32 {
	return s.refs.Load()
}
