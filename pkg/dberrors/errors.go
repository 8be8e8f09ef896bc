// Package dberrors collects the sentinel error values shared across lsmkv.
package dberrors

import "errors"

var (
	// ErrOutOfMemory is returned when the scratch arena or a tuple
	// allocation is exhausted.
	ErrOutOfMemory = errors.New("lsmkv: out of memory")

	// ErrTxTrackFailure is returned when the transaction manager refuses
	// to register a read-intent for a point lookup.
	ErrTxTrackFailure = errors.New("lsmkv: tx track failure")

	// ErrIO is returned when a run/slice read fails.
	ErrIO = errors.New("lsmkv: io error")

	// ErrUpsertFailure is returned when the upsert applier cannot produce
	// a merged tuple.
	ErrUpsertFailure = errors.New("lsmkv: upsert failure")

	// ErrKeyNotFound is a "definitely absent" sentinel distinct from a
	// nil tuple. Nothing in this module returns it: a point lookup
	// reports an absent key as a nil result.
	ErrKeyNotFound = errors.New("lsmkv: key not found")

	// ErrClosed is returned by operations on a closed WAL.
	ErrClosed = errors.New("lsmkv: closed")

	// ErrInvalidArgument marks a programming-error style precondition
	// violation (e.g. building a run from no records).
	ErrInvalidArgument = errors.New("lsmkv: invalid argument")

	// ErrCompactionRunning is returned when a dump/compaction is asked to
	// start while one is already in flight.
	ErrCompactionRunning = errors.New("lsmkv: compaction running")
)
