// Package minhash implements MinHash signatures for estimating the Jaccard
// similarity between sets.
//
// The Jaccard similarity of two sets, |A ∩ B| / |A ∪ B|, normally requires
// both full sets. A MinHash signature compresses a set of any size into
// numPerm 64-bit values such that, for two signatures built with the same
// permutation family, the fraction of matching slots is an unbiased estimator
// of the Jaccard similarity (Broder, "On the resemblance and containment of
// documents"). The standard error of the estimate is about 1/sqrt(numPerm).
//
// The Algorithm
// =============
//
// Each signature slot i owns a random linear permutation of the hash space:
//
//	pi_i(h) = (a_i*h + b_i) mod P        P = 2^61 - 1 (Mersenne prime)
//
// The slot stores the minimum permuted hash over every item the signature has
// ever seen. For a random permutation, the probability that two sets share
// the same minimum is exactly their Jaccard similarity, which is why matching
// slots estimate it.
//
// Two consequences of the element-wise-minimum representation:
//
//   - Update is cumulative: the signature always describes the union of all
//     items passed to every Update call, never just the latest batch.
//   - Merge is the element-wise minimum of two signatures and yields exactly
//     the signature of the union of the underlying sets.
//
// Signatures are only comparable when built from the same permutation family,
// i.e. the same numPerm and seed. The permutation parameters are drawn from a
// seeded SplitMix64 generator, so a fixed seed is fully reproducible.
//
// The signature is an in-memory value with no internal locking; concurrent
// mutation must be prevented by the caller.
package minhash

import (
	"errors"
	"math"
	"math/bits"

	"sketches.lopezb.com/xhash"
)

// mersennePrime is 2^61 - 1, the modulus of the permutation family. A prime
// modulus keeps the linear maps bijective on the reduced hash space.
const mersennePrime = (1 << 61) - 1

// DefaultNumPerm gives a standard error of 1/sqrt(128) ~= 8.8%.
const DefaultNumPerm = 128

var (
	// ErrInvalidConfig is returned when numPerm is not positive.
	ErrInvalidConfig = errors.New("minhash: numPerm must be > 0")

	// ErrIncompatible is returned when comparing or merging signatures built
	// from different permutation families (numPerm or seed mismatch).
	ErrIncompatible = errors.New("minhash: signatures have different permutation families")
)

// Signature is a MinHash signature: numPerm permutation parameters and the
// running minimum for each. Empty slots hold the maximum uint64; they only
// ever decrease as items are observed.
type Signature struct {
	numPerm int
	seed    uint64
	a       []uint64 // multipliers, odd and non-zero
	b       []uint64 // offsets
	sig     []uint64 // current minima
}

// Info is the diagnostic snapshot returned by Info.
type Info struct {
	NumPerm       int     `json:"num_perm"`
	Seed          uint64  `json:"seed"`
	StandardError float64 `json:"standard_error"`
}

// New creates an empty signature with numPerm permutations drawn from seed.
func New(numPerm int, seed uint64) (*Signature, error) {
	if numPerm < 1 {
		return nil, ErrInvalidConfig
	}

	s := &Signature{
		numPerm: numPerm,
		seed:    seed,
		a:       make([]uint64, numPerm),
		b:       make([]uint64, numPerm),
		sig:     make([]uint64, numPerm),
	}

	// Draw the permutation parameters deterministically from the seed.
	// Forcing a odd keeps the multiplier coprime with the hash space so no
	// permutation collapses distinct hashes more than necessary.
	rng := xhash.NewRNG(seed)
	for i := 0; i < numPerm; i++ {
		s.a[i] = rng.Next()%(mersennePrime-1) | 1
		s.b[i] = rng.Next() % mersennePrime
	}

	for i := range s.sig {
		s.sig[i] = math.MaxUint64
	}

	return s, nil
}

// Update folds items into the signature. The signature is cumulative across
// calls: after any sequence of Updates it describes the union of everything
// ever passed in.
func (s *Signature) Update(items ...[]byte) {
	for _, item := range items {
		s.updateHash(xhash.Sum64(item))
	}
}

// UpdateString is the string-key variant of Update.
func (s *Signature) UpdateString(items ...string) {
	for _, item := range items {
		s.updateHash(xhash.Sum64String(item))
	}
}

func (s *Signature) updateHash(h uint64) {
	h %= mersennePrime
	for i := 0; i < s.numPerm; i++ {
		// (a*h + b) mod P in 128-bit space; a*h overflows 64 bits.
		v := mulmod(s.a[i], h, s.b[i])
		if v < s.sig[i] {
			s.sig[i] = v
		}
	}
}

// mulmod computes (a*h + b) mod mersennePrime. The product a*h needs 128
// bits; it is folded with the identity 2^64 ≡ 8 and 2^61 ≡ 1 (mod 2^61-1)
// so no division is performed on the wide part.
func mulmod(a, h, b uint64) uint64 {
	hi, lo := bits.Mul64(a, h)

	// a and h are both < 2^61, so hi < 2^58 and hi<<3 cannot overflow.
	r := (hi << 3) + (lo >> 61) + (lo & mersennePrime) + b
	return r % mersennePrime
}

// Jaccard estimates the Jaccard similarity between the sets described by the
// two signatures: the fraction of slots where the minima agree. Comparing a
// signature to itself always yields exactly 1.0.
func (s *Signature) Jaccard(other *Signature) (float64, error) {
	if other == nil || s.numPerm != other.numPerm || s.seed != other.seed {
		return 0, ErrIncompatible
	}

	equal := 0
	for i := range s.sig {
		if s.sig[i] == other.sig[i] {
			equal++
		}
	}
	return float64(equal) / float64(s.numPerm), nil
}

// Merge folds other into s by taking the element-wise minimum, exactly the
// signature that would result from observing the union of both item sets.
func (s *Signature) Merge(other *Signature) error {
	if other == nil || s.numPerm != other.numPerm || s.seed != other.seed {
		return ErrIncompatible
	}

	for i, v := range other.sig {
		if v < s.sig[i] {
			s.sig[i] = v
		}
	}
	return nil
}

// Reset returns every slot to the empty state (maximum uint64).
func (s *Signature) Reset() {
	for i := range s.sig {
		s.sig[i] = math.MaxUint64
	}
}

// NumPerm returns the number of permutations in the signature.
func (s *Signature) NumPerm() int { return s.numPerm }

// Seed returns the seed the permutation family was drawn from.
func (s *Signature) Seed() uint64 { return s.seed }

// Info returns the signature's diagnostics. StandardError is the theoretical
// 1/sqrt(numPerm) of the Jaccard estimator.
func (s *Signature) Info() Info {
	return Info{
		NumPerm:       s.numPerm,
		Seed:          s.seed,
		StandardError: 1 / math.Sqrt(float64(s.numPerm)),
	}
}
