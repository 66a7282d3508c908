package embedding

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/turtacn/PPI-Intelligence/pkg/errors"
)

// SnapshotFormat tags serialized cache snapshots.
const SnapshotFormat = "ppi.embcache.v1"

// EncodeSnapshot writes entries in protobuf wire format:
//
//	1 format  2 dim  3 entry{1 accession, 2 packed fixed32}*
//
// Entries are sorted by id so equal caches encode to equal bytes.
func EncodeSnapshot(dim int, entries map[string]Vector) ([]byte, error) {
	ids := make([]string, 0, len(entries))
	for id, v := range entries {
		if len(v) != dim {
			return nil, errors.Newf(errors.ErrCodeEmbeddingDimMismatch, "snapshot entry %s has width %d, want %d", id, len(v), dim)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, SnapshotFormat)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(dim))
	for _, id := range ids {
		var e []byte
		e = protowire.AppendTag(e, 1, protowire.BytesType)
		e = protowire.AppendString(e, id)
		e = appendPackedFloats(e, 2, entries[id])
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b, nil
}

// DecodeSnapshot parses EncodeSnapshot output.
func DecodeSnapshot(data []byte) (int, map[string]Vector, error) {
	format := ""
	dim := 0
	entries := make(map[string]Vector)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, nil, snapshotErr("malformed tag", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return 0, nil, snapshotErr("truncated format", protowire.ParseError(m))
			}
			format, n = v, m
		case num == 2 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return 0, nil, snapshotErr("truncated dim", protowire.ParseError(m))
			}
			dim, n = int(v), m
		case num == 3 && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return 0, nil, snapshotErr("truncated entry", protowire.ParseError(m))
			}
			id, vec, err := decodeEntry(raw)
			if err != nil {
				return 0, nil, err
			}
			entries[id] = vec
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return 0, nil, snapshotErr("malformed field", protowire.ParseError(m))
			}
			n = m
		}
		data = data[n:]
	}
	if format != SnapshotFormat {
		return 0, nil, snapshotErr(fmt.Sprintf("unknown format %q", format), nil)
	}
	for id, v := range entries {
		if len(v) != dim {
			return 0, nil, errors.Newf(errors.ErrCodeEmbeddingDimMismatch, "snapshot entry %s has width %d, want %d", id, len(v), dim)
		}
	}
	return dim, entries, nil
}

func decodeEntry(raw []byte) (string, Vector, error) {
	var (
		id  string
		vec Vector
	)
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return "", nil, snapshotErr("malformed entry tag", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(raw)
			if m < 0 {
				return "", nil, snapshotErr("truncated entry id", protowire.ParseError(m))
			}
			id, n = v, m
		case num == 2 && typ == protowire.BytesType:
			b, m := protowire.ConsumeBytes(raw)
			if m < 0 {
				return "", nil, snapshotErr("truncated entry vector", protowire.ParseError(m))
			}
			v, err := decodePackedFloats(b)
			if err != nil {
				return "", nil, snapshotErr("bad entry vector", err)
			}
			vec, n = v, m
		default:
			m := protowire.ConsumeFieldValue(num, typ, raw)
			if m < 0 {
				return "", nil, snapshotErr("malformed entry field", protowire.ParseError(m))
			}
			n = m
		}
		raw = raw[n:]
	}
	if id == "" {
		return "", nil, snapshotErr("entry without id", nil)
	}
	return id, vec, nil
}

func snapshotErr(msg string, cause error) error {
	e := errors.New(errors.ErrCodeSerialization, "embedding snapshot: "+msg)
	if cause != nil {
		return e.WithCause(cause)
	}
	return e
}

// vectorsEqual compares within tol.
func vectorsEqual(a, b Vector, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i])-float64(b[i])) > tol {
			return false
		}
	}
	return true
}

//Personal.AI order the ending
