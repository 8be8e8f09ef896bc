package runstore

import (
	"bytes"
	"sort"
	"sync"
)

// Range is a contiguous, non-overlapping key span owning the slices
// that cover it. A point lookup finds exactly one range for its key and
// then scans every slice belonging to it.
type Range struct {
	Begin, End []byte // End is exclusive; a nil End means unbounded.
	Slices     []*Slice
}

// contains reports whether key falls within [Begin, End).
func (rg *Range) contains(key []byte) bool {
	if bytes.Compare(key, rg.Begin) < 0 {
		return false
	}
	if rg.End != nil && bytes.Compare(key, rg.End) >= 0 {
		return false
	}
	return true
}

// RangeTree is the sorted collection of ranges covering an index's
// entire keyspace.
type RangeTree struct {
	mu     sync.RWMutex
	ranges []*Range
}

// NewRangeTree returns an empty tree. AddRange must be called at least
// once (with a Begin of nil) before FindByKey can succeed, matching how
// a freshly created index starts with a single unbounded range.
func NewRangeTree() *RangeTree {
	return &RangeTree{}
}

// AddRange inserts rg, keeping ranges sorted by Begin.
func (t *RangeTree) AddRange(rg *Range) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.ranges), func(i int) bool {
		return bytes.Compare(t.ranges[i].Begin, rg.Begin) >= 0
	})
	t.ranges = append(t.ranges, nil)
	copy(t.ranges[i+1:], t.ranges[i:])
	t.ranges[i] = rg
}

// FindByKey returns the range covering key, mirroring
// vy_range_tree_find_by_key(ITER_EQ, key): there must always be exactly
// one, since ranges partition the full keyspace with no gaps.
func (t *RangeTree) FindByKey(key []byte) *Range {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := sort.Search(len(t.ranges), func(i int) bool {
		return bytes.Compare(t.ranges[i].Begin, key) > 0
	})
	i--
	if i < 0 || i >= len(t.ranges) {
		return nil
	}
	rg := t.ranges[i]
	if !rg.contains(key) {
		return nil
	}
	return rg
}
