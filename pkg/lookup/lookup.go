// Package lookup implements the point-lookup read path: a single key,
// single-statement fetch that walks the transaction write set, the
// tuple cache, the mem-tree list and finally the run files, in that
// precedence order, folding any upsert deltas it collects along the way
// into one resultant value.
package lookup

import (
	"log/slog"
	"time"

	"lsmkv/pkg/arena"
	"lsmkv/pkg/history"
	"lsmkv/pkg/index"
	"lsmkv/pkg/memtable"
	"lsmkv/pkg/metrics"
	"lsmkv/pkg/readview"
	"lsmkv/pkg/runstore"
	"lsmkv/pkg/stmt"
	"lsmkv/pkg/txn"
	"lsmkv/pkg/upsert"
)

// PointLookup returns the latest statement visible to view for key, or
// nil if the key does not exist (or was deleted) as of that view. tx
// may be nil for a lookup not run inside a transaction.
//
// The scan order is fixed: write set, cache, mem-tree list, run files.
// Scanning stops the moment a terminal statement (Replace, Insert or
// Delete) is found; anything collected before that point is an upsert
// delta folded onto whatever terminates the chain.
func PointLookup(idx *index.Index, tx *txn.Tx, view readview.View, key []byte) (*stmt.Statement, error) {
	start := time.Now()

	var trackGen uint64
	var tracked bool
	if tx != nil {
		trackGen = idx.Tracker.Track(key)
		tracked = true
	}

	a := arena.New(idx.Env.ArenaChunkBytes)

restart:
	mark := a.Mark()
	h := history.New()

	if err := scanTxW(idx, tx, key, h); err != nil {
		h.Cleanup()
		a.Reset(mark)
		return nil, err
	}
	if h.IsTerminal() {
		return finish(idx, view, key, h, a, mark, tracked, trackGen, start)
	}

	if err := scanCache(idx, view, key, h); err != nil {
		h.Cleanup()
		a.Reset(mark)
		return nil, err
	}
	if h.IsTerminal() {
		return finish(idx, view, key, h, a, mark, tracked, trackGen, start)
	}

	scanMems(idx, view, key, h, a)
	if h.IsTerminal() {
		return finish(idx, view, key, h, a, mark, tracked, trackGen, start)
	}

	// Snapshot mem_list_version before the only step that can yield
	// (a disk scan touching a run file). If it changes while we're
	// scanning, the mems backing the history we already collected may
	// have been dumped out from under us; restart from scratch.
	memListVersion := idx.Mems.Version()

	if err := scanSlices(idx, view, key, h); err != nil {
		h.Cleanup()
		a.Reset(mark)
		return nil, err
	}

	if memListVersion != idx.Mems.Version() {
		h.Cleanup()
		a.Reset(mark)
		idx.Metrics.IncCounter(metrics.CounterRestarts, nil, 1)
		goto restart
	}

	return finish(idx, view, key, h, a, mark, tracked, trackGen, start)
}

func finish(idx *index.Index, view readview.View, key []byte, h *history.History, a *arena.Arena, mark arena.Mark, tracked bool, trackGen uint64, start time.Time) (*stmt.Statement, error) {
	result, err := applyHistory(idx, view, key, h, tracked, trackGen)
	h.Cleanup()
	a.Reset(mark)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	idx.Metrics.ObserveHistogram(metrics.HistogramLatency, nil, latency.Seconds())

	threshold := time.Duration(idx.Env.TooLongThresholdMs) * time.Millisecond
	if threshold > 0 && latency > threshold {
		slog.Warn("point lookup took too long",
			"key", string(key), "latency", latency, "found", result != nil)
	}

	return result, nil
}

// scanTxW checks the transaction's own write set. At most one
// statement can come from here, since a transaction never writes the
// same key twice without collapsing the prior write.
func scanTxW(idx *index.Index, tx *txn.Tx, key []byte, h *history.History) error {
	if tx == nil {
		return nil
	}
	idx.Metrics.IncCounter(metrics.CounterScanTxW, map[string]string{"source_tag": "lookup"}, 1)
	s, ok := tx.Get(key)
	if !ok {
		return nil
	}
	idx.Metrics.IncCounter(metrics.CounterScanTxW, map[string]string{"source_tag": "get"}, 1)
	h.Append(history.SourceTxW, s)
	return nil
}

// scanCache checks the tuple cache. A cached statement newer than the
// read view is invisible and must be skipped, same as it would be if
// found any other way.
func scanCache(idx *index.Index, view readview.View, key []byte, h *history.History) error {
	idx.Metrics.IncCounter(metrics.CounterScanCache, map[string]string{"source_tag": "lookup"}, 1)

	value, kind, lsn, present, ok := idx.Cache.Get(key)
	if !ok || !view.IsVisible(lsn) {
		return nil
	}

	idx.Metrics.IncCounter(metrics.CounterScanCache, map[string]string{"source_tag": "get"}, 1)

	if !present {
		h.Append(history.SourceCache, stmt.New(stmt.KindDelete, key, nil, lsn))
		return nil
	}
	h.Append(history.SourceCache, stmt.New(stmt.Kind(kind), key, value, lsn))
	return nil
}

// scanMems walks the active mem, then every sealed mem newest-first,
// stopping as soon as a terminal statement is found.
func scanMems(idx *index.Index, view readview.View, key []byte, h *history.History, a *arena.Arena) {
	idx.Metrics.IncCounter(metrics.CounterScanMem, map[string]string{"source_tag": "lookup"}, 1)
	before := len(h.Nodes())
	memtable.ScanMems(idx.Mems, key, view, h, a)
	if len(h.Nodes()) > before {
		idx.Metrics.IncCounter(metrics.CounterScanMem, map[string]string{"source_tag": "get"}, 1)
	}
}

// scanSlices finds the range covering key and scans every slice in it,
// pinning all of them up front so a concurrent compaction cannot drop
// one mid-scan. Mirrors vy_point_lookup_scan_slices.
func scanSlices(idx *index.Index, view readview.View, key []byte, h *history.History) error {
	rg := idx.Ranges.FindByKey(key)
	if rg == nil {
		return nil
	}

	for _, sl := range rg.Slices {
		sl.Pin()
	}
	defer func() {
		for _, sl := range rg.Slices {
			sl.Unpin()
		}
	}()

	for _, sl := range rg.Slices {
		if h.IsTerminal() {
			return nil
		}
		if err := scanSlice(idx, sl, view, key, h); err != nil {
			return err
		}
	}
	return nil
}

// scanSlice scans one slice's run for key, appending every visible
// version up to and including the first terminal statement.
func scanSlice(idx *index.Index, sl *runstore.Slice, view readview.View, key []byte, h *history.History) error {
	if !sl.Run.MayContain(key) {
		return nil
	}

	idx.Metrics.IncCounter(metrics.CounterScanRun, map[string]string{"source_tag": "lookup"}, 1)

	it, err := runstore.OpenEqual(sl.Run, key)
	if err != nil {
		return err
	}
	defer it.Close()

	s, err := it.NextKey()
	for err == nil && s != nil {
		if !view.IsVisible(s.LSN) {
			s, err = it.NextLSN()
			continue
		}
		idx.Metrics.IncCounter(metrics.CounterScanRun, map[string]string{"source_tag": "get"}, 1)
		h.Append(history.SourceRun, s)
		if h.IsTerminal() {
			return nil
		}
		s, err = it.NextLSN()
	}
	return err
}

// applyHistory folds the collected history into a single resultant
// statement, oldest-delta-first, and republishes the result into the
// cache when the lookup was taken at the latest read view and no
// concurrent commit raced it.
func applyHistory(idx *index.Index, view readview.View, key []byte, h *history.History, tracked bool, trackGen uint64) (*stmt.Statement, error) {
	nodes := h.Nodes()
	if len(nodes) == 0 {
		return nil, nil
	}

	var result *stmt.Statement
	var absentLSN uint64
	i := len(nodes) - 1
	if nodes[i].Stmt.Kind.IsTerminal() {
		last := nodes[i]
		switch {
		case last.Stmt.Kind == stmt.KindDelete:
			// accumulator stays absent
			absentLSN = last.Stmt.LSN
		case last.Source == history.SourceMem:
			// memtable.ScanMem already arena-duplicated this statement on
			// append, since mem memory isn't refcount-protected; that
			// duplicate already is the accumulator's own reference.
			result = last.Stmt
		default:
			// Run/Cache/TxW-sourced: this node is still owned by h and
			// will be Unref'd (Run) or simply dropped (Cache/TxW) by
			// h.Cleanup below, so the accumulator needs its own reference
			// distinct from history's.
			result = last.Stmt.Ref()
		}
		i--
	}

	for ; i >= 0; i-- {
		delta := nodes[i].Stmt
		merged, err := upsert.Apply(delta, result)
		if err != nil {
			result.Unref()
			return nil, err
		}
		idx.Metrics.IncCounter(metrics.CounterUpserts, nil, 1)
		result.Unref()
		result = merged
	}

	if view.IsLatest() && (!tracked || idx.Tracker.Unchanged(key, trackGen)) {
		publish(idx, key, result, absentLSN)
	}

	return result, nil
}

func publish(idx *index.Index, key []byte, result *stmt.Statement, absentLSN uint64) {
	if result == nil {
		idx.Cache.Put(key, nil, 0, absentLSN, false)
		return
	}
	idx.Cache.Put(key, result.Value, byte(result.Kind), result.LSN, true)
}
