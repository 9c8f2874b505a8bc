// Package bloom implements a classic fixed-size Bloom filter for approximate
// set membership.
//
// A Bloom filter answers "definitely not present" or "probably present" for a
// set of keys using a bit array that is far smaller than the keys themselves.
// It never produces false negatives: once a key has been added, Contains will
// always report it. False positives occur at a rate that is configured at
// construction time and rises as the filter fills past its designed capacity.
//
// The Algorithm
// =============
//
// Construction follows the standard sizing formulas. Given an expected number
// of distinct inserts n and a target false-positive rate p:
//
//	m = ceil(-n * ln(p) / ln(2)^2)    bits in the array
//	k = max(1, round(m/n * ln(2)))    hash functions
//
// Rather than computing k independent digests per operation, the filter uses
// the Kirsch-Mitzenmacher double-hashing construction: two digests h1 (xxHash64)
// and h2 (XXH3) are combined as
//
//	position_i = (h1 + i*h2) mod m        for i in [0, k)
//
// which is proven to preserve the false-positive bound while hashing the input
// only twice ("Less hashing, same performance: Building a better Bloom filter").
//
// Set Algebra
// ===========
//
// Two filters built with identical m and k are mergeable: Union ORs the bit
// arrays (membership in either set), Intersect ANDs them (approximate common
// membership). The insert counters cannot be combined exactly from bits alone,
// so Union keeps the max and Intersect the min of the two counts; Info reports
// them as approximations.
//
// The filter is a plain in-memory value with no internal locking. Concurrent
// mutation of one instance must be prevented by the caller.
package bloom

import (
	"errors"
	"math"
	"math/bits"

	"sketches.lopezb.com/xhash"
)

const (
	// DefaultCapacity sizes a filter when the caller has no estimate.
	DefaultCapacity = 1000

	// DefaultErrorRate is the default target false-positive rate.
	DefaultErrorRate = 0.01
)

var (
	// ErrInvalidConfig is returned for a zero capacity or a false-positive
	// rate outside (0, 1).
	ErrInvalidConfig = errors.New("bloom: capacity must be > 0 and rate in (0, 1)")

	// ErrIncompatible is returned when Union or Intersect is attempted on
	// filters with different bit-array sizes or hash counts.
	ErrIncompatible = errors.New("bloom: filters have mismatched size or hash count")
)

// Filter is a fixed-size Bloom filter. The bit array and hash count are fixed
// at construction; bits are only ever set, never cleared, except by Reset.
type Filter struct {
	words    []uint64 // bit array, m bits packed into 64-bit words
	bits     uint64   // m: logical size of the bit array
	hashes   uint32   // k: number of derived positions per key
	count    uint64   // n: Add invocations (not deduplicated)
	capacity uint64   // designed capacity, kept for saturation reporting
}

// Info is the diagnostic snapshot returned by Info.
type Info struct {
	Bits              uint64  `json:"bits"`
	Hashes            uint32  `json:"hashes"`
	Count             uint64  `json:"count"`
	Capacity          uint64  `json:"capacity"`
	FillRatio         float64 `json:"fill_ratio"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	Saturated         bool    `json:"saturated"`
}

// New creates a filter sized for the given expected number of distinct inserts
// and target false-positive rate.
func New(capacity uint64, fpRate float64) (*Filter, error) {
	if capacity == 0 || fpRate <= 0 || fpRate >= 1 {
		return nil, ErrInvalidConfig
	}

	ln2 := math.Log(2)
	m := uint64(math.Ceil(-float64(capacity) * math.Log(fpRate) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}

	k := uint32(math.Round(float64(m) / float64(capacity) * ln2))
	if k < 1 {
		k = 1
	}

	return &Filter{
		words:    make([]uint64, (m+63)/64),
		bits:     m,
		hashes:   k,
		capacity: capacity,
	}, nil
}

// Add inserts an item. Re-adding the same item is harmless for membership but
// inflates the insert counter, since the filter cannot distinguish duplicates.
func (f *Filter) Add(item []byte) {
	h1, h2 := xhash.Pair(item)
	f.addHash(h1, h2)
}

// AddString inserts a string key without forcing the caller to convert it.
func (f *Filter) AddString(item string) {
	f.addHash(xhash.Sum64String(item), xhash.Sum64Alt([]byte(item)))
}

func (f *Filter) addHash(h1, h2 uint64) {
	for i := uint64(0); i < uint64(f.hashes); i++ {
		pos := (h1 + i*h2) % f.bits
		f.words[pos>>6] |= 1 << (pos & 63)
	}
	f.count++
}

// Contains reports whether the item is probably in the set. A false result is
// definitive; a true result is subject to the configured false-positive rate.
func (f *Filter) Contains(item []byte) bool {
	h1, h2 := xhash.Pair(item)
	for i := uint64(0); i < uint64(f.hashes); i++ {
		pos := (h1 + i*h2) % f.bits
		if f.words[pos>>6]&(1<<(pos&63)) == 0 {
			return false
		}
	}
	return true
}

// ContainsString is the string-key variant of Contains.
func (f *Filter) ContainsString(item string) bool {
	return f.Contains([]byte(item))
}

// Union merges other into f so that f answers membership for either set.
// Both filters must share the same bit-array size and hash count. The insert
// counter becomes the max of the two counts, an approximation since the true
// union cardinality is unknowable from bits alone.
func (f *Filter) Union(other *Filter) error {
	if other == nil || f.bits != other.bits || f.hashes != other.hashes {
		return ErrIncompatible
	}

	for i := range f.words {
		f.words[i] |= other.words[i]
	}
	if other.count > f.count {
		f.count = other.count
	}
	return nil
}

// Intersect narrows f to bits set in both filters, approximating membership in
// both sets. The count becomes the min of the two counts. Note that the result
// may report false positives beyond the configured rate: a bit can be shared
// by unrelated keys from the two sets.
func (f *Filter) Intersect(other *Filter) error {
	if other == nil || f.bits != other.bits || f.hashes != other.hashes {
		return ErrIncompatible
	}

	for i := range f.words {
		f.words[i] &= other.words[i]
	}
	if other.count < f.count {
		f.count = other.count
	}
	return nil
}

// Reset zeroes every bit and counter, returning the filter to its freshly
// constructed state without reallocating.
func (f *Filter) Reset() {
	clear(f.words)
	f.count = 0
}

// Count returns the number of Add invocations since construction or Reset.
func (f *Filter) Count() uint64 {
	return f.count
}

// Info returns the filter's diagnostics. FalsePositiveRate is the standard
// estimate (1 - e^(-k*n/m))^k for the current fill; watching it (or the
// Saturated flag) is how callers detect an overloaded filter, since the
// filter itself keeps accepting inserts past capacity.
func (f *Filter) Info() Info {
	var set uint64
	for _, w := range f.words {
		set += uint64(bits.OnesCount64(w))
	}

	kn := float64(f.hashes) * float64(f.count)
	fpr := math.Pow(1-math.Exp(-kn/float64(f.bits)), float64(f.hashes))

	return Info{
		Bits:              f.bits,
		Hashes:            f.hashes,
		Count:             f.count,
		Capacity:          f.capacity,
		FillRatio:         float64(set) / float64(f.bits),
		FalsePositiveRate: fpr,
		Saturated:         f.count > f.capacity,
	}
}
