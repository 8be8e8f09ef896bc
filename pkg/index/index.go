// Package index ties together the mem-tree list, the run-backed range
// tree, the tuple cache and the read-intent tracker a point lookup
// needs, plus the small write path that fills them.
package index

import (
	"lsmkv/pkg/cache"
	"lsmkv/pkg/clock"
	"lsmkv/pkg/config"
	"lsmkv/pkg/memtable"
	"lsmkv/pkg/metrics"
	"lsmkv/pkg/runstore"
	"lsmkv/pkg/stmt"
	"lsmkv/pkg/txn"
	"lsmkv/pkg/wal"
)

// Index is a single keyspace's storage state: everything a point
// lookup needs to find the latest value for a key, and everything the
// ambient write path needs to record a new one.
type Index struct {
	Mems    *memtable.Mems
	Ranges  *runstore.RangeTree
	Cache   *cache.Cache
	Tracker *txn.Tracker
	Metrics metrics.Collector
	Env     config.Env

	wal *wal.WAL
	lsn *clock.AtomicClock
}

// New creates an Index over the given configuration, covering the full
// keyspace with one unbounded range until runs are added to it.
func New(cfg config.Config, log *wal.WAL) *Index {
	rt := runstore.NewRangeTree()
	rt.AddRange(&runstore.Range{Begin: nil, End: nil})

	idx := &Index{
		Mems:    memtable.New(cfg.DB.Memtable),
		Ranges:  rt,
		Cache:   cache.New(cfg.DB.Persistence.Cache.Capacity),
		Tracker: txn.NewTracker(),
		Metrics: metrics.NopCollector{},
		Env:     cfg.DB.Env,
		wal:     log,
		lsn:     clock.NewAtomic(0),
	}
	return idx
}

// NextLSN hands out a strictly increasing sequence number for the
// ambient write path to stamp onto new statements.
func (idx *Index) NextLSN() uint64 {
	return idx.lsn.Next()
}

// Put writes key=value as a Replace statement, through the WAL (if
// configured) and into the active mem.
func (idx *Index) Put(key, value []byte) error {
	lsn := idx.NextLSN()
	if idx.wal != nil {
		idx.wal.Append(wal.Entry{SeqNum: lsn, Key: key, Value: value, Meta: uint64(stmt.KindReplace)})
	}
	idx.Tracker.Bump(key)
	return idx.Mems.Put(stmt.New(stmt.KindReplace, key, value, lsn))
}

// Delete writes a Delete statement for key.
func (idx *Index) Delete(key []byte) error {
	lsn := idx.NextLSN()
	if idx.wal != nil {
		idx.wal.Append(wal.Entry{SeqNum: lsn, Key: key, Value: nil, Meta: uint64(stmt.KindDelete)})
	}
	idx.Tracker.Bump(key)
	return idx.Mems.Put(stmt.New(stmt.KindDelete, key, nil, lsn))
}

// Upsert writes an Upsert delta for key.
func (idx *Index) Upsert(key, ops []byte) error {
	lsn := idx.NextLSN()
	if idx.wal != nil {
		idx.wal.Append(wal.Entry{SeqNum: lsn, Key: key, Value: ops, Meta: uint64(stmt.KindUpsert)})
	}
	idx.Tracker.Bump(key)
	s := stmt.New(stmt.KindUpsert, key, nil, lsn)
	s.UpsertOps = ops
	return idx.Mems.Put(s)
}
