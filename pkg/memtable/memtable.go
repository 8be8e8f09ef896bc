// Package memtable implements the mem-tree list a point lookup scans
// after the transaction write set and cache: one active, writable mem
// plus zero or more sealed mems awaiting a dump, each holding per-key
// version chains in (key asc, lsn desc) order.
package memtable

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"lsmkv/pkg/arena"
	"lsmkv/pkg/config"
	"lsmkv/pkg/history"
	"lsmkv/pkg/readview"
	"lsmkv/pkg/stmt"
)

var ErrTooLargeEntry = errors.New("memtable: entry is too large")

// chain is a key's statements, newest (highest LSN) first.
type chain struct {
	mu    sync.Mutex
	stmts []*stmt.Statement
}

func (c *chain) prepend(s *stmt.Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stmts = append([]*stmt.Statement{s}, c.stmts...)
}

func (c *chain) snapshot() []*stmt.Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*stmt.Statement(nil), c.stmts...)
}

type keyChains = skipmap.FuncMap[[]byte, *chain]

func newKeyChains() *keyChains {
	return skipmap.NewFunc[[]byte, *chain](func(a, b []byte) bool {
		return bytes.Compare(a, b) < 0
	})
}

// Mem is a single in-memory tree of statements, ordered by key and,
// within a key, by decreasing LSN.
type Mem struct {
	underlying *keyChains
	size       atomic.Uint64
}

func newMem() *Mem {
	return &Mem{underlying: newKeyChains()}
}

// Put inserts a statement into the mem. Callers (the ambient write
// path) are responsible for assigning strictly increasing LSNs.
func (m *Mem) Put(s *stmt.Statement) {
	c, loaded := m.underlying.LoadOrStore(s.Key, &chain{})
	_ = loaded
	c.prepend(s)
	m.size.Add(uint64(len(s.Key) + len(s.Value) + 24))
}

// Size reports the mem's approximate byte footprint, used to decide
// when to rotate it into the sealed list.
func (m *Mem) Size() uint64 {
	return m.size.Load()
}

// Mems is the active-plus-sealed mem list belonging to one index,
// together with the version counter a point lookup snapshots before
// its (possibly yielding) disk scan and compares afterwards.
type Mems struct {
	cfg config.MemtableConfig

	mu      sync.Mutex
	version atomic.Uint32
	active  atomic.Pointer[Mem]
	sealed  []*Mem // newest-sealed first
}

// New creates an empty mem list.
func New(cfg config.MemtableConfig) *Mems {
	ms := &Mems{cfg: cfg}
	ms.active.Store(newMem())
	return ms
}

// Version returns the current mem_list_version: it changes on every
// rotation (active sealed, or a sealed mem dropped after a dump).
func (ms *Mems) Version() uint32 {
	return ms.version.Load()
}

// Put writes a statement into the active mem, rotating it into the
// sealed list first if it has grown past the configured threshold.
func (ms *Mems) Put(s *stmt.Statement) error {
	entSize := uint64(len(s.Key)) + uint64(len(s.Value)) + 16
	if entSize > uint64(ms.cfg.FlushThresholdBytes) {
		return ErrTooLargeEntry
	}

	active := ms.active.Load()
	if active.Size()+entSize > uint64(ms.cfg.FlushThresholdBytes) {
		ms.rotate()
		active = ms.active.Load()
	}
	active.Put(s)
	return nil
}

// rotate seals the current active mem and starts a fresh one. This is
// the only mutation that bumps mem_list_version besides Drop.
func (ms *Mems) rotate() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	current := ms.active.Load()
	sealed := append([]*Mem{current}, ms.sealed...)
	if len(sealed) > ms.cfg.MaxImmTables && ms.cfg.MaxImmTables > 0 {
		sealed = sealed[:ms.cfg.MaxImmTables]
	}
	ms.sealed = sealed
	ms.active.Store(newMem())
	ms.version.Add(1)
}

// Drop removes the oldest sealed mem, as a dump would once it has been
// durably written to a run. It bumps mem_list_version the same way
// rotate does, which is what forces an in-flight lookup's disk scan to
// restart: the memory backing its history may be gone.
func (ms *Mems) Drop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(ms.sealed) == 0 {
		return
	}
	ms.sealed = ms.sealed[:len(ms.sealed)-1]
	ms.version.Add(1)
}

// Active returns the current active mem.
func (ms *Mems) Active() *Mem {
	return ms.active.Load()
}

// Sealed returns the current sealed mems, newest first.
func (ms *Mems) Sealed() []*Mem {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]*Mem(nil), ms.sealed...)
}

// ScanMem walks one mem's version chain for key, appending every
// visible statement to h until a terminal statement is found or the
// chain runs out. Each appended statement is duplicated into a, since a
// mem isn't refcount-protected: the only thing guarding its memory
// across a lookup's yield point is the mem_list_version restart check.
func ScanMem(m *Mem, key []byte, view readview.View, h *history.History, a *arena.Arena) {
	c, ok := m.underlying.Load(key)
	if !ok {
		return
	}

	var prevLSN uint64
	first := true
	for _, s := range c.snapshot() {
		if !view.IsVisible(s.LSN) {
			continue
		}
		if !first && s.LSN >= prevLSN {
			// Not strictly decreasing: treat as end of this key's
			// visible chain rather than risk an infinite fold.
			break
		}
		h.Append(history.SourceMem, s.Dup(a.Dup))
		prevLSN = s.LSN
		first = false
		if h.IsTerminal() {
			return
		}
	}
}

// ScanMems walks the active mem, then every sealed mem in
// newest-to-oldest order, stopping as soon as history becomes terminal.
func ScanMems(ms *Mems, key []byte, view readview.View, h *history.History, a *arena.Arena) {
	ScanMem(ms.Active(), key, view, h, a)
	if h.IsTerminal() {
		return
	}
	for _, m := range ms.Sealed() {
		ScanMem(m, key, view, h, a)
		if h.IsTerminal() {
			return
		}
	}
}
