// Package cuckoo implements a Cuckoo filter: approximate set membership with
// support for deletion.
//
// Like a Bloom filter, a Cuckoo filter answers "definitely not present" or
// "probably present"; unlike a Bloom filter it stores discrete fingerprints,
// so a previously added item can be removed again without corrupting the
// membership of other items.
//
// The Algorithm
// =============
//
// Every item is reduced to a short non-zero fingerprint and two candidate
// buckets ("partial-key cuckoo hashing", Fan et al., "Cuckoo Filter:
// Practically Better Than Bloom"):
//
//	fp = nonzero truncation of hash(item)
//	i1 = hash(item) mod size
//	i2 = (i1 XOR hash(fp)) mod size
//
// Deriving i2 from i1 and the fingerprint alone is what makes relocation
// possible: when a stored fingerprint must move, its alternate bucket can be
// recomputed without the original key.
//
// Insertion places the fingerprint in a free slot of either bucket. When both
// are full, a random victim is evicted and pushed to its own alternate
// bucket, possibly displacing another victim, and so on: the cuckoo "kick"
// chain. The chain is bounded by MaxKicks to guarantee termination.
//
// Failed Inserts Are Clean
// ========================
//
// When the relocation budget runs out, the entire kick chain is rolled back
// and Add returns false. A false Add leaves the filter exactly as it was: no
// fingerprint is silently dropped and no bucket is overfilled, so the
// no-false-negative guarantee holds for every item whose Add returned true.
// Callers must treat a false Add as "filter is effectively full" and check
// Info for the kick-failure count.
//
// Randomness
// ==========
//
// Victim selection uses a SplitMix64 generator seeded at construction, so a
// fixed seed reproduces the exact same eviction sequence. There is no global
// random state.
//
// The filter is an in-memory value with no internal locking; concurrent
// mutation must be prevented by the caller.
package cuckoo

import (
	"encoding/binary"
	"errors"
	"math"
	"math/bits"

	"sketches.lopezb.com/xhash"
)

const (
	// DefaultBucketSize is the number of fingerprint slots per bucket.
	// Four slots keeps the insert failure probability negligible up to
	// ~95% load.
	DefaultBucketSize = 4

	// DefaultFingerprintBits trades 2 bytes per item for a false-positive
	// rate around 2*4/2^16 = 0.012%.
	DefaultFingerprintBits = 16

	// DefaultMaxKicks bounds the relocation chain.
	DefaultMaxKicks = 500
)

var (
	// ErrInvalidConfig is returned for a zero capacity, a zero bucket size,
	// or a fingerprint width outside [1, 16] bits.
	ErrInvalidConfig = errors.New("cuckoo: invalid capacity, bucket size or fingerprint bits")
)

// Config holds the construction parameters for a filter. Zero fields take
// the package defaults; Capacity is required.
type Config struct {
	// Capacity is the number of items the filter is sized for.
	Capacity uint64

	// BucketSize is the number of fingerprint slots per bucket.
	BucketSize int

	// FingerprintBits is the width of each stored fingerprint, 1 to 16.
	FingerprintBits int

	// MaxKicks caps the relocation chain length on insert.
	MaxKicks int

	// Seed drives the victim-selection PRNG. A fixed seed makes eviction
	// behavior fully reproducible.
	Seed uint64
}

// DefaultConfig returns the defaults for the given capacity.
func DefaultConfig(capacity uint64) Config {
	return Config{
		Capacity:        capacity,
		BucketSize:      DefaultBucketSize,
		FingerprintBits: DefaultFingerprintBits,
		MaxKicks:        DefaultMaxKicks,
		Seed:            1,
	}
}

// Filter is a Cuckoo filter. Fingerprints are stored in a flat slice of
// size*bucketSize uint16 slots; a zero slot is empty (fingerprints are
// forced non-zero).
type Filter struct {
	slots      []uint16
	size       uint64 // bucket count
	bucketSize int
	fpMask     uint16 // (1<<fingerprintBits) - 1
	fpBits     int
	maxKicks   int
	count      uint64 // live fingerprints
	kickFails  uint64 // inserts rejected after relocation exhaustion
	rng        *xhash.RNG
}

// Info is the diagnostic snapshot returned by Info.
type Info struct {
	Buckets           uint64  `json:"buckets"`
	BucketSize        int     `json:"bucket_size"`
	FingerprintBits   int     `json:"fingerprint_bits"`
	Count             uint64  `json:"count"`
	LoadFactor        float64 `json:"load_factor"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	KickFailures      uint64  `json:"kick_failures"`
}

// New creates a filter from cfg. The bucket count starts from
// ceil(capacity / bucketSize * 1.05), where the 5% headroom keeps the kick
// chains short near design capacity, and is then rounded up to a power of two.
// The rounding is a correctness requirement, not an optimization: the
// alternate-bucket relation i2 = (i1 XOR hash(fp)) mod size is only an
// involution when the modulo is a bit mask, and relocation depends on
// altIndex(altIndex(i)) == i to keep every kicked fingerprint reachable
// from its own key.
func New(cfg Config) (*Filter, error) {
	if cfg.BucketSize == 0 {
		cfg.BucketSize = DefaultBucketSize
	}
	if cfg.FingerprintBits == 0 {
		cfg.FingerprintBits = DefaultFingerprintBits
	}
	if cfg.MaxKicks == 0 {
		cfg.MaxKicks = DefaultMaxKicks
	}

	if cfg.Capacity == 0 || cfg.BucketSize < 1 ||
		cfg.FingerprintBits < 1 || cfg.FingerprintBits > 16 {
		return nil, ErrInvalidConfig
	}

	size := nextPowerOfTwo(uint64(math.Ceil(float64(cfg.Capacity) / float64(cfg.BucketSize) * 1.05)))

	return &Filter{
		slots:      make([]uint16, size*uint64(cfg.BucketSize)),
		size:       size,
		bucketSize: cfg.BucketSize,
		fpMask:     uint16(1<<cfg.FingerprintBits - 1),
		fpBits:     cfg.FingerprintBits,
		maxKicks:   cfg.MaxKicks,
		rng:        xhash.NewRNG(cfg.Seed),
	}, nil
}

// fingerprintAndIndex derives the item's fingerprint and primary bucket.
// The fingerprint comes from the upper hash bits, the bucket from the full
// hash, so the two are as independent as a single digest allows.
func (f *Filter) fingerprintAndIndex(item []byte) (fp uint16, i1 uint64) {
	h := xhash.Sum64(item)

	fp = uint16(h>>48) & f.fpMask
	if fp == 0 {
		// The all-zero fingerprint marks an empty slot and is invalid.
		fp = 1
	}

	return fp, h & (f.size - 1)
}

// altIndex returns the other candidate bucket for a fingerprint currently in
// bucket idx. The offset depends only on the fingerprint, never the key, and
// the size mask makes the relation self-inverse: altIndex(altIndex(i)) == i.
func (f *Filter) altIndex(idx uint64, fp uint16) uint64 {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], fp)
	return (idx ^ xhash.Sum64(buf[:])) & (f.size - 1)
}

// bucket returns the slot range for bucket idx.
func (f *Filter) bucket(idx uint64) []uint16 {
	start := idx * uint64(f.bucketSize)
	return f.slots[start : start+uint64(f.bucketSize)]
}

// Add inserts an item. It returns false when the relocation budget was
// exhausted; in that case the filter state is unchanged and the failure is
// counted in Info's KickFailures.
func (f *Filter) Add(item []byte) bool {
	fp, i1 := f.fingerprintAndIndex(item)
	i2 := f.altIndex(i1, fp)

	if insertInto(f.bucket(i1), fp) || insertInto(f.bucket(i2), fp) {
		f.count++
		return true
	}

	return f.kickInsert(fp, i1, i2)
}

// AddString is the string-key variant of Add.
func (f *Filter) AddString(item string) bool {
	return f.Add([]byte(item))
}

// kickMove records one swap of the relocation chain so it can be undone.
type kickMove struct {
	bucket uint64
	slot   int
	prev   uint16
}

// kickInsert runs the cuckoo relocation chain for fp, whose candidate buckets
// i1 and i2 are both full. On failure every displacement is rolled back.
func (f *Filter) kickInsert(fp uint16, i1, i2 uint64) bool {
	idx := i1
	if f.rng.Intn(2) == 0 {
		idx = i2
	}

	// The chain is bounded, so the trail slice is too; it lets a failed
	// insert restore the filter to its exact prior state.
	trail := make([]kickMove, 0, f.maxKicks)

	for n := 0; n < f.maxKicks; n++ {
		slot := f.rng.Intn(f.bucketSize)
		b := f.bucket(idx)

		trail = append(trail, kickMove{bucket: idx, slot: slot, prev: b[slot]})
		fp, b[slot] = b[slot], fp

		idx = f.altIndex(idx, fp)
		if insertInto(f.bucket(idx), fp) {
			f.count++
			return true
		}
	}

	// Budget exhausted: unwind the chain in reverse so the filter is exactly
	// as it was before Add.
	for n := len(trail) - 1; n >= 0; n-- {
		mv := trail[n]
		f.bucket(mv.bucket)[mv.slot] = mv.prev
	}

	f.kickFails++
	return false
}

// Contains reports whether the item's fingerprint is present in either of its
// candidate buckets. False positives occur when another key shares both a
// bucket and a fingerprint; false negatives do not occur for items whose Add
// returned true and which have not been removed.
func (f *Filter) Contains(item []byte) bool {
	fp, i1 := f.fingerprintAndIndex(item)
	i2 := f.altIndex(i1, fp)

	return contains(f.bucket(i1), fp) || contains(f.bucket(i2), fp)
}

// Remove deletes one copy of the item's fingerprint and reports whether a
// removal occurred. Removing an item that was never added can still return
// true if a fingerprint collision exists; that is the same approximation that
// causes false positives on Contains.
func (f *Filter) Remove(item []byte) bool {
	fp, i1 := f.fingerprintAndIndex(item)

	if removeFrom(f.bucket(i1), fp) {
		f.count--
		return true
	}
	if removeFrom(f.bucket(f.altIndex(i1, fp)), fp) {
		f.count--
		return true
	}
	return false
}

// Count returns the number of live fingerprints.
func (f *Filter) Count() uint64 {
	return f.count
}

// Reset empties every bucket and clears the counters without reallocating.
// The PRNG keeps its sequence; reproducibility is per construction, not per
// reset.
func (f *Filter) Reset() {
	clear(f.slots)
	f.count = 0
	f.kickFails = 0
}

// Info returns the filter's diagnostics. FalsePositiveRate is the standard
// approximation 2*bucketSize/2^fingerprintBits (two candidate buckets, each
// with bucketSize chances to collide on the fingerprint). KickFailures
// surfaces inserts rejected by relocation exhaustion.
func (f *Filter) Info() Info {
	totalSlots := f.size * uint64(f.bucketSize)

	return Info{
		Buckets:           f.size,
		BucketSize:        f.bucketSize,
		FingerprintBits:   f.fpBits,
		Count:             f.count,
		LoadFactor:        float64(f.count) / float64(totalSlots),
		FalsePositiveRate: 2 * float64(f.bucketSize) / math.Exp2(float64(f.fpBits)),
		KickFailures:      f.kickFails,
	}
}

// insertInto places fp in the first empty slot of the bucket, if any.
func insertInto(b []uint16, fp uint16) bool {
	for i := range b {
		if b[i] == 0 {
			b[i] = fp
			return true
		}
	}
	return false
}

// contains reports whether the bucket holds fp.
func contains(b []uint16, fp uint16) bool {
	for _, v := range b {
		if v == fp {
			return true
		}
	}
	return false
}

// removeFrom clears the first occurrence of fp in the bucket.
func removeFrom(b []uint16, fp uint16) bool {
	for i := range b {
		if b[i] == fp {
			b[i] = 0
			return true
		}
	}
	return false
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}
