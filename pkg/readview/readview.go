// Package readview defines the MVCC read view a point lookup is
// performed under.
package readview

import "math"

// Max is the sentinel VLSN meaning "the latest committed value, as of
// whenever the lookup actually runs" rather than a pinned historical
// LSN. Only a lookup taken at Max is eligible to publish into the
// tuple cache: anything older is, by construction, a snapshot read that
// must not be mistaken for the current value.
const Max uint64 = math.MaxUint64

// View is the read view a point lookup is performed under: every
// statement with LSN > VLSN is invisible to it.
type View struct {
	VLSN uint64
}

// Latest returns the read view that sees the latest committed value.
func Latest() View {
	return View{VLSN: Max}
}

// At returns a read view pinned to a specific LSN, as used by a
// long-running transaction with its own snapshot.
func At(lsn uint64) View {
	return View{VLSN: lsn}
}

// IsVisible reports whether a statement with the given LSN is visible
// under this read view.
func (v View) IsVisible(lsn uint64) bool {
	return v.VLSN == Max || lsn <= v.VLSN
}

// IsLatest reports whether this view is pinned to the latest committed
// value rather than a historical snapshot.
func (v View) IsLatest() bool {
	return v.VLSN == Max
}
