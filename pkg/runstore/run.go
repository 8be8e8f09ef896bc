// Package runstore implements the on-disk run layer a point lookup
// falls through to once the mem-tree list has been exhausted: immutable,
// sorted, (key asc, lsn desc) statement blocks, grouped into ranges and
// looked up through a bloom filter before ever decompressing anything.
package runstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/stmt"
)

// record is one statement as stored inside a run's compressed block.
type record struct {
	key   []byte
	kind  stmt.Kind
	value []byte
	ops   []byte
	lsn   uint64
}

// Run is a single immutable, sorted statement block. It is built once
// (via Builder) and never mutated again; compaction would replace it
// with a new Run rather than edit it in place.
type Run struct {
	ID      uuid.UUID
	MinKey  []byte
	MaxKey  []byte
	bloom   *bloomFilter
	payload []byte // zstd-compressed, sorted record stream

	once    sync.Once
	records []record
	openErr error
}

// Builder accumulates statements in key order and produces a Run.
type Builder struct {
	records []record
	fpRate  float64
}

// NewBuilder starts a Run builder targeting the given bloom filter false
// positive rate.
func NewBuilder(fpRate float64) *Builder {
	return &Builder{fpRate: fpRate}
}

// Add appends one statement. Callers must add in (key asc, lsn desc)
// order; Build does not re-sort, matching how a real flush/compaction
// pass produces already-sorted output.
func (b *Builder) Add(s *stmt.Statement) {
	b.records = append(b.records, record{key: s.Key, kind: s.Kind, value: s.Value, ops: s.UpsertOps, lsn: s.LSN})
}

// Build compresses the accumulated records into a Run.
func (b *Builder) Build() (*Run, error) {
	if len(b.records) == 0 {
		return nil, fmt.Errorf("%w: cannot build an empty run", dberrors.ErrInvalidArgument)
	}

	raw := encodeRecords(b.records)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("runstore: new zstd writer: %w", err)
	}
	payload := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	bloom := newBloomFilter(len(b.records), b.fpRate)
	for _, r := range b.records {
		bloom.add(r.key)
	}

	run := &Run{
		ID:      uuid.New(),
		MinKey:  append([]byte(nil), b.records[0].key...),
		MaxKey:  append([]byte(nil), b.records[len(b.records)-1].key...),
		bloom:   bloom,
		payload: payload,
	}
	return run, nil
}

// MayContain reports whether key could be present in the run, consulting
// only the bloom filter and key range, without decompressing.
func (r *Run) MayContain(key []byte) bool {
	if bytes.Compare(key, r.MinKey) < 0 || bytes.Compare(key, r.MaxKey) > 0 {
		return false
	}
	return r.bloom.mayContain(key)
}

func (r *Run) decode() error {
	r.once.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			r.openErr = fmt.Errorf("%w: new zstd reader: %v", dberrors.ErrIO, err)
			return
		}
		defer dec.Close()

		raw, err := dec.DecodeAll(r.payload, nil)
		if err != nil {
			r.openErr = fmt.Errorf("%w: decode run %s: %v", dberrors.ErrIO, r.ID, err)
			return
		}
		r.records, err = decodeRecords(raw)
		if err != nil {
			r.openErr = fmt.Errorf("%w: %v", dberrors.ErrIO, err)
		}
	})
	return r.openErr
}

func encodeRecords(recs []record) []byte {
	var buf bytes.Buffer
	var hdr [8]byte
	for _, r := range recs {
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(r.key)))
		buf.Write(hdr[0:4])
		buf.Write(r.key)

		buf.WriteByte(byte(r.kind))

		binary.LittleEndian.PutUint64(hdr[0:8], r.lsn)
		buf.Write(hdr[0:8])

		binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(r.value)))
		buf.Write(hdr[0:4])
		buf.Write(r.value)

		binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(r.ops)))
		buf.Write(hdr[0:4])
		buf.Write(r.ops)
	}
	return buf.Bytes()
}

func decodeRecords(raw []byte) ([]record, error) {
	var recs []record
	for len(raw) > 0 {
		var r record
		var err error
		r.key, raw, err = readChunk(raw)
		if err != nil {
			return nil, err
		}
		if len(raw) < 1 {
			return nil, fmt.Errorf("runstore: truncated record kind")
		}
		r.kind = stmt.Kind(raw[0])
		raw = raw[1:]
		if len(raw) < 8 {
			return nil, fmt.Errorf("runstore: truncated record lsn")
		}
		r.lsn = binary.LittleEndian.Uint64(raw[:8])
		raw = raw[8:]
		r.value, raw, err = readChunk(raw)
		if err != nil {
			return nil, err
		}
		r.ops, raw, err = readChunk(raw)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func readChunk(raw []byte) (chunk, rest []byte, err error) {
	if len(raw) < 4 {
		return nil, nil, fmt.Errorf("runstore: truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint32(len(raw)) < n {
		return nil, nil, fmt.Errorf("runstore: truncated chunk")
	}
	return raw[:n], raw[n:], nil
}

// Iterator scans a single run for all versions of one key, in (key
// asc already guaranteed by OpenEqual, lsn desc) order, mirroring the
// run iterator contract pkg/lookup drives: NextKey finds the first
// statement at or after key, NextLSN walks older versions of that same
// key until a different key or end of run is reached.
type Iterator struct {
	run  *Run
	key  []byte
	pos  int
	done bool
}

// OpenEqual prepares an iterator positioned to scan key's versions
// within run. It decompresses the run on first use.
func OpenEqual(run *Run, key []byte) (*Iterator, error) {
	if err := run.decode(); err != nil {
		return nil, err
	}
	pos := sort.Search(len(run.records), func(i int) bool {
		return bytes.Compare(run.records[i].key, key) >= 0
	})
	return &Iterator{run: run, key: key, pos: pos}, nil
}

// NextKey returns the first (highest-LSN) statement matching the
// iterator's key, or nil if the key is absent from this run.
func (it *Iterator) NextKey() (*stmt.Statement, error) {
	if it.done || it.pos >= len(it.run.records) {
		it.done = true
		return nil, nil
	}
	r := it.run.records[it.pos]
	if !bytes.Equal(r.key, it.key) {
		it.done = true
		return nil, nil
	}
	it.pos++
	return toStatement(r), nil
}

// NextLSN returns the next-older statement for the same key, or nil
// once the key's version chain within this run is exhausted.
func (it *Iterator) NextLSN() (*stmt.Statement, error) {
	return it.NextKey()
}

// Close releases the iterator. Runs hold no per-iterator resources
// beyond the decoded record slice, which outlives any single iterator.
func (it *Iterator) Close() {}

func toStatement(r record) *stmt.Statement {
	s := stmt.New(r.kind, r.key, r.value, r.lsn)
	s.UpsertOps = r.ops
	return s
}
