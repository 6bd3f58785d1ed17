package opt

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// NewRand returns the deterministic source a run draws every random number
// from.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// DeriveSeed maps a base seed and a stream index to an independent seed.
// Stream 0 is the base seed itself.
func DeriveSeed(base int64, stream int) int64 {
	if stream == 0 {
		return base
	}
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(base))
	binary.LittleEndian.PutUint64(buf[8:], uint64(stream))
	_, _ = h.Write(buf[:])
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
