package kernel

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/blake2b"

	"graphflow/internal/vector"
)

// Hash64 computes the 64-bit hash used by hash-join build and the
// aggregate hash table's bucket index. It folds the blake2b digest of the
// value's canonical byte encoding down to 64 bits, so that group keys with
// differing LogicalType but equal canonical bytes (e.g. Int64(3) vs
// Double(3.0) never arise, since the caller always hashes like-typed
// columns) hash identically across runs and processes.
func Hash64(v *vector.Vector, pos int) uint64 {
	if v.IsNull(pos) {
		return nullHash
	}
	b := canonicalBytes(v, pos)
	sum := blake2b.Sum512(b)
	return binary.LittleEndian.Uint64(sum[:8])
}

// nullHash is the fixed hash assigned to a null group-key component, kept
// distinct from any canonical byte encoding's hash by construction (it is
// never produced by canonicalBytes' tag-prefixed encoding).
const nullHash = 0xACE1B64D3F7E9A11

func canonicalBytes(v *vector.Vector, pos int) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, byte(v.Type))
	switch v.Type {
	case vector.Bool:
		if v.GetBool(pos) {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case vector.Int64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.GetInt64(pos)))
		buf = append(buf, tmp[:]...)
	case vector.Double:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], floatBits(v.GetDouble(pos)))
		buf = append(buf, tmp[:]...)
	case vector.String:
		buf = append(buf, []byte(v.GetString(pos))...)
	case vector.NodeID:
		id := v.GetNodeID(pos)
		buf = appendUint64Pair(buf, id.TableID, id.Offset)
	case vector.RelID:
		id := v.GetRelID(pos)
		buf = appendUint64Pair(buf, id.TableID, id.Offset)
	case vector.Date:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.GetDate(pos).Days))
		buf = append(buf, tmp[:]...)
	case vector.Timestamp:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.GetTimestamp(pos).Micros))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func appendUint64Pair(buf []byte, a, b uint64) []byte {
	var tmp [16]byte
	binary.LittleEndian.PutUint64(tmp[0:8], a)
	binary.LittleEndian.PutUint64(tmp[8:16], b)
	return append(buf, tmp[:]...)
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

// CombineHash folds a running composite-key hash with the next column's
// hash, the way a multi-column group key accumulates across Vectors.
func CombineHash(running, next uint64) uint64 {
	const prime = 0x100000001b3
	return (running ^ next) * prime
}
