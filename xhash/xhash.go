// Package xhash provides the deterministic, seedable hashing primitives shared
// by every probabilistic structure in this module.
//
// None of the structures need cryptographic strength; they need speed and good
// statistical distribution. Two independent non-cryptographic digests are used:
//
//  1. xxHash64 (github.com/cespare/xxhash) as the primary hash h1.
//  2. XXH3 (github.com/zeebo/xxh3) as the secondary hash h2.
//
// Having two genuinely different digest algorithms lets callers apply the
// Kirsch-Mitzenmacher "double hashing" construction
//
//	g_i(x) = (h1(x) + i*h2(x)) mod range
//
// to simulate any number of independent hash functions from just two digest
// passes over the input ("Less hashing, same performance: Building a better
// Bloom filter").
//
// Seeding
// =======
//
// Seeded variants prefix the 8 little-endian seed bytes to the digest stream
// rather than post-mixing the output. Mixing a seed into the finished 64-bit
// value only permutes outputs, so two seeds would always collide on the same
// input pairs; feeding the seed through the digest state gives each seed a
// statistically independent hash family. The consequence is the contract the
// structures rely on: identical (algorithm, seed, input) always yields the
// identical output.
package xhash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Hasher is the narrow interface a structure needs from a hash function.
// The package-level functions satisfy the common case; tests and callers with
// special distribution requirements can inject their own.
type Hasher interface {
	Sum64Seed(data []byte, seed uint64) uint64
}

// Default is the package's stock Hasher, backed by seeded xxHash64.
var Default Hasher = xxHasher{}

type xxHasher struct{}

func (xxHasher) Sum64Seed(data []byte, seed uint64) uint64 {
	return Sum64Seed(data, seed)
}

// Sum64 returns the unseeded xxHash64 digest of data. This is h1 in the
// double-hashing scheme.
func Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Sum64String is the allocation-free string variant of Sum64.
func Sum64String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Sum64Seed returns the xxHash64 digest of data under the given seed. The
// seed is written into the digest stream ahead of the payload so that each
// seed selects an independent hash family.
func Sum64Seed(data []byte, seed uint64) uint64 {
	var d xxhash.Digest
	d.Reset()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	_, _ = d.Write(buf[:])
	_, _ = d.Write(data)

	return d.Sum64()
}

// Sum64Alt returns the XXH3 digest of data. This is h2 in the double-hashing
// scheme: a different algorithm, not merely a different seed, so the two
// values are statistically independent.
func Sum64Alt(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Sum64AltSeed returns the seeded XXH3 digest of data.
func Sum64AltSeed(data []byte, seed uint64) uint64 {
	return xxh3.HashSeed(data, seed)
}

// Pair returns both digests of data in one call: h1 from xxHash64 and h2 from
// XXH3. Every caller that needs k derived positions should call this once and
// combine as (h1 + i*h2) mod range.
func Pair(data []byte) (h1, h2 uint64) {
	return xxhash.Sum64(data), xxh3.Hash(data)
}

// Mix scrambles a 64-bit integer with the SplitMix64 finalizer (public
// domain). It derives an uncorrelated value from an existing hash without
// touching the input bytes again, e.g. for a fingerprint's bucket offset.
func Mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// RNG is a tiny seedable SplitMix64 pseudo-random source. The cuckoo filter's
// eviction choices and the MinHash permutation parameters come from here so
// that behavior is reproducible under a fixed seed; there is no hidden global
// random state anywhere in the module.
type RNG struct {
	state uint64
}

// NewRNG returns a generator whose whole sequence is determined by seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{state: seed}
}

// Next returns the next pseudo-random uint64.
func (r *RNG) Next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	return Mix(r.state)
}

// Intn returns a pseudo-random int in [0, n). n must be positive.
func (r *RNG) Intn(n int) int {
	return int(r.Next() % uint64(n))
}
