// Package upsert implements the delta-merge algebra an upsert statement
// is folded through when materializing history: each upsert op is
// applied on top of the next-older statement's value to produce a new
// value, never raising an error for a malformed base (it falls back to
// inserting the delta's own default).
package upsert

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lsmkv/pkg/dberrors"
	"lsmkv/pkg/stmt"
)

// OpCode identifies one operation within an upsert's op list.
type OpCode byte

const (
	// OpSet replaces the value outright, same as a Replace statement
	// would, except it remains foldable beneath an older upsert.
	OpSet OpCode = iota
	// OpIncrement adds Operand, read as a little-endian int64, to the
	// base value (also read as an int64). A missing or short base is
	// treated as zero.
	OpIncrement
	// OpAppend concatenates Operand onto the end of the base value.
	OpAppend
)

// ErrMalformedOps is returned when an upsert's operation list cannot be
// decoded; the lookup fails the same way a corrupt run block would.
var ErrMalformedOps = errors.New("upsert: malformed operation list")

// Op is one decoded operation.
type Op struct {
	Code    OpCode
	Operand []byte
}

// EncodeOps serializes a list of ops into the byte form stored in
// Statement.UpsertOps: a one-byte opcode, a four-byte little-endian
// operand length, and the operand, repeated.
func EncodeOps(ops []Op) []byte {
	var out []byte
	for _, op := range ops {
		var hdr [5]byte
		hdr[0] = byte(op.Code)
		binary.LittleEndian.PutUint32(hdr[1:], uint32(len(op.Operand)))
		out = append(out, hdr[:]...)
		out = append(out, op.Operand...)
	}
	return out
}

func decodeOps(raw []byte) ([]Op, error) {
	var ops []Op
	for len(raw) > 0 {
		if len(raw) < 5 {
			return nil, ErrMalformedOps
		}
		code := OpCode(raw[0])
		n := binary.LittleEndian.Uint32(raw[1:5])
		raw = raw[5:]
		if uint32(len(raw)) < n {
			return nil, ErrMalformedOps
		}
		ops = append(ops, Op{Code: code, Operand: raw[:n]})
		raw = raw[n:]
	}
	return ops, nil
}

// Apply folds delta (a KindUpsert statement) onto base, the next-older
// statement in history, and returns the resulting value. base may be
// nil, meaning no older statement exists yet; each op defines its own
// behavior for that case. The returned statement always has delta's key
// and LSN: an upsert never changes which key or version it represents,
// only what value that version resolves to.
func Apply(delta, base *stmt.Statement) (*stmt.Statement, error) {
	ops, err := decodeOps(delta.UpsertOps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrUpsertFailure, err)
	}

	value := []byte(nil)
	if base != nil {
		value = base.Value
	}

	for _, op := range ops {
		switch op.Code {
		case OpSet:
			value = op.Operand
		case OpIncrement:
			value = applyIncrement(value, op.Operand)
		case OpAppend:
			next := make([]byte, 0, len(value)+len(op.Operand))
			next = append(next, value...)
			next = append(next, op.Operand...)
			value = next
		default:
			return nil, fmt.Errorf("%w: %v", dberrors.ErrUpsertFailure, ErrMalformedOps)
		}
	}

	return stmt.New(stmt.KindReplace, delta.Key, value, delta.LSN), nil
}

func applyIncrement(base, operand []byte) []byte {
	var b, d int64
	if len(base) >= 8 {
		b = int64(binary.LittleEndian.Uint64(base))
	}
	if len(operand) >= 8 {
		d = int64(binary.LittleEndian.Uint64(operand))
	}
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(b+d))
	return out
}
