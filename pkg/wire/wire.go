// Package wire implements the length-framed, field-id-tagged binary
// codec used to carry rows between the ingestion pipeline and storage.
// The field-id layout is stable across versions: ids are append-only,
// unknown ids decode without loss, so peers running different builds
// stay wire compatible.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// ValueKind tags the wire representation of a single field value.
type ValueKind byte

const (
	KindString ValueKind = iota + 1
	KindDateTimeMicros
)

// Value is a single typed field value as stored in a row.
type Value struct {
	Kind   ValueKind
	Str    string
	Micros int64 // valid when Kind == KindDateTimeMicros
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func TimeValue(micros int64) Value { return Value{Kind: KindDateTimeMicros, Micros: micros} }

// String renders v as the plain text a scan result's projected columns
// carry, regardless of the value's underlying wire kind.
func (v Value) String() string {
	if v.Kind == KindDateTimeMicros {
		return time.UnixMicro(v.Micros).UTC().Format(time.RFC3339Nano)
	}
	return v.Str
}

// Row is a sparse field-id -> value map, matching RowSchema's "all fields
// optional" invariant: absent ids are simply not present.
type Row map[uint32]Value

// EncodeRow serializes a row as a sequence of (field id varint, kind byte,
// length-prefixed payload) tuples, sorted by field id for determinism.
func EncodeRow(row Row) []byte {
	ids := make([]uint32, 0, len(row))
	for id := range row {
		ids = append(ids, id)
	}
	sortUint32(ids)

	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	for _, id := range ids {
		v := row[id]
		n := binary.PutUvarint(tmp[:], uint64(id))
		buf.Write(tmp[:n])
		buf.WriteByte(byte(v.Kind))

		switch v.Kind {
		case KindString:
			n = binary.PutUvarint(tmp[:], uint64(len(v.Str)))
			buf.Write(tmp[:n])
			buf.WriteString(v.Str)
		case KindDateTimeMicros:
			n = binary.PutVarint(tmp[:], v.Micros)
			buf.Write(tmp[:n])
		}
	}
	return buf.Bytes()
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(data []byte) (Row, error) {
	row := make(Row)
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		id, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("wire: decode field id: %w", err)
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("wire: decode field kind: %w", err)
		}

		switch ValueKind(kindByte) {
		case KindString:
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("wire: decode string length: %w", err)
			}
			buf := make([]byte, n)
			if _, err := r.Read(buf); err != nil {
				return nil, fmt.Errorf("wire: decode string payload: %w", err)
			}
			row[uint32(id)] = StringValue(string(buf))
		case KindDateTimeMicros:
			micros, err := binary.ReadVarint(r)
			if err != nil {
				return nil, fmt.Errorf("wire: decode datetime payload: %w", err)
			}
			row[uint32(id)] = TimeValue(micros)
		default:
			return nil, fmt.Errorf("wire: unknown value kind %d", kindByte)
		}
	}
	return row, nil
}

func sortUint32(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
