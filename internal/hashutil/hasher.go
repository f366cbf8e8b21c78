package hashutil

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"
)

// Seed is the pair of 64-bit words that key the hash. It is generated once
// per process start and copied by value into every Hasher; two Hashers
// built from equal Seeds always agree on Hash and HashPair.
type Seed struct {
	K0 uint64
	K1 uint64
}

// NewSeed generates a fresh random Seed using a cryptographically secure
// source. Call this once at process start; every shard, connection, and the
// shards registry should receive a copy of the same Seed.
func NewSeed() (Seed, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return Seed{}, fmt.Errorf("hashutil: generate seed: %w", err)
	}
	return Seed{
		K0: binary.LittleEndian.Uint64(buf[0:8]),
		K1: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// Hasher computes the keyed 64-bit hash used for map slot selection and
// rendezvous shard scoring. The zero value is not usable; construct one
// with New.
type Hasher struct {
	seed Seed
}

// New returns a Hasher keyed by seed.
func New(seed Seed) Hasher {
	return Hasher{seed: seed}
}

// Seed returns the Hasher's seed, so callers can copy it into other
// Hashers constructed later (e.g. one per accepted connection).
func (h Hasher) Seed() Seed {
	return h.seed
}

// Hash returns the keyed 64-bit hash of name. The same name always hashes
// to the same value for Hashers sharing a Seed.
func (h Hasher) Hash(name []byte) int64 {
	return int64(siphash.Hash(h.seed.K0, h.seed.K1, name))
}

// HashPair combines two 64-bit integers into a single keyed hash, used by
// the shards registry to score a (shard index, key hash) pair under
// rendezvous hashing. a and b are packed little-endian into a 16-byte
// buffer and hashed as one message, so HashPair(a, b) and HashPair(b, a)
// are (as expected) different scores.
func (h Hasher) HashPair(a, b int64) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(b))
	return int64(siphash.Hash(h.seed.K0, h.seed.K1, buf[:]))
}
