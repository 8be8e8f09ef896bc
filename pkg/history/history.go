// Package history builds and folds the per-key statement history a
// point lookup assembles while walking its sources in precedence order.
package history

import "lsmkv/pkg/stmt"

// SourceTag identifies which source a history node's statement came
// from. Only SourceRun statements are refcounted; SourceMem statements
// must already have been arena-duplicated by the scanner that produced
// them, since mem memory has no refcount protection of its own.
type SourceTag uint8

const (
	SourceTxW SourceTag = iota
	SourceCache
	SourceMem
	SourceRun
)

func (t SourceTag) String() string {
	switch t {
	case SourceTxW:
		return "txw"
	case SourceCache:
		return "cache"
	case SourceMem:
		return "mem"
	case SourceRun:
		return "run"
	default:
		return "unknown"
	}
}

// Node is one link in a key's statement history, in order of strictly
// decreasing LSN.
type Node struct {
	Source SourceTag
	Stmt   *stmt.Statement
}

// History is the ordered statement list a lookup accumulates as it
// walks TxW, cache, mems and runs, in that precedence order.
type History struct {
	nodes []Node
}

// New returns an empty history ready to receive nodes via Append.
func New() *History {
	return &History{}
}

// Append adds a node to the tail of the history. Callers must append in
// strictly decreasing LSN order; nothing in this package re-sorts.
func (h *History) Append(source SourceTag, s *stmt.Statement) {
	h.nodes = append(h.nodes, Node{Source: source, Stmt: s})
}

// Empty reports whether no statement has been found yet.
func (h *History) Empty() bool {
	return len(h.nodes) == 0
}

// IsTerminal reports whether the last-appended node is a terminal
// statement (Replace, Insert or Delete). An empty history is not
// terminal: scanning must continue until something is found or every
// source has been exhausted.
func (h *History) IsTerminal() bool {
	if len(h.nodes) == 0 {
		return false
	}
	return h.nodes[len(h.nodes)-1].Stmt.Kind.IsTerminal()
}

// Nodes returns the accumulated nodes, oldest scan order first (i.e.
// TxW/cache/mem/run in the order they were appended).
func (h *History) Nodes() []Node {
	return h.nodes
}

// Cleanup releases every run-sourced statement's reference. Mem- and
// cache-sourced statements are left alone: they were either arena
// copies (mem) or came from the cache's own independent ownership.
func (h *History) Cleanup() {
	for _, n := range h.nodes {
		if n.Source == SourceRun {
			n.Stmt.Unref()
		}
	}
	h.nodes = nil
}
