// Package txn implements the transaction write set a point lookup
// checks first, and the read-intent tracker that keeps a concurrent
// commit from racing a lookup's cache publish.
package txn

import (
	"sync"

	"lsmkv/pkg/stmt"
)

// Tx is a single transaction's write set: statements it has written but
// not yet committed, checked ahead of the cache and the mem-tree list
// by every point lookup run under it.
type Tx struct {
	writeSet map[string]*stmt.Statement
}

// New returns an empty transaction.
func New() *Tx {
	return &Tx{writeSet: make(map[string]*stmt.Statement)}
}

// Put records a replace-kind write.
func (tx *Tx) Put(key, value []byte, lsn uint64) {
	tx.writeSet[string(key)] = stmt.New(stmt.KindReplace, key, value, lsn)
}

// Delete records a delete-kind write.
func (tx *Tx) Delete(key []byte, lsn uint64) {
	tx.writeSet[string(key)] = stmt.New(stmt.KindDelete, key, nil, lsn)
}

// Upsert records an upsert-kind write. Like Put/Delete it replaces any
// existing write-set entry for key: an earlier write to key in this
// transaction is not folded into the new upsert, and only the newest
// upsert is kept.
func (tx *Tx) Upsert(key []byte, ops []byte, lsn uint64) {
	s := stmt.New(stmt.KindUpsert, key, nil, lsn)
	s.UpsertOps = ops
	tx.writeSet[string(key)] = s
}

// Get returns the write-set entry for key, if any. This is what
// pkg/lookup's scanTxW calls.
func (tx *Tx) Get(key []byte) (*stmt.Statement, bool) {
	s, ok := tx.writeSet[string(key)]
	return s, ok
}

// Tracker lets a point lookup register a read-intent on a key before it
// begins a (possibly yielding) scan, and lets a writer check whether
// its commit raced an in-flight lookup for the same key. A lookup that
// observes its tracked generation change between registering and
// finishing must not publish its result into the shared cache: by the
// time it finished scanning, a newer value may already be committed.
type Tracker struct {
	mu  sync.Mutex
	gen map[string]uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{gen: make(map[string]uint64)}
}

// Track registers a read-intent on key and returns its current
// generation. The lookup must pass this value to Unchanged once it has
// finished scanning.
func (t *Tracker) Track(key []byte) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen[string(key)]
}

// Bump advances key's generation. Called by the write path whenever a
// statement for key commits.
func (t *Tracker) Bump(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen[string(key)]++
}

// Unchanged reports whether key's generation is still what it was when
// Track returned want.
func (t *Tracker) Unchanged(key []byte, want uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen[string(key)] == want
}
