// Package hyperloglog implements the HyperLogLog algorithm for cardinality
// estimation.
//
// A HyperLogLog estimates the number of distinct elements in a stream with a
// fixed amount of memory, regardless of the actual cardinality. The algorithm
// exploits a statistical property of uniformly distributed hash values: the
// probability of a hash whose binary representation starts with r leading
// zeros is 1/2^r, so the longest observed run is a proxy for how many unique
// values have been seen.
//
// [1] P. Flajolet, E. Fusy, O. Gandouet, F. Meunier. "HyperLogLog: the
// analysis of a near-optimal cardinality estimation algorithm".
//
// The Algorithm
// =============
//
// To reduce variance, the hash space is partitioned into m = 2^p registers.
// Each element is hashed to a 64-bit value which is split:
//
//  1. The lower p bits select one of the m registers.
//  2. The remaining 64-p bits contribute their leading-zero run length + 1
//     (the "rank").
//
// Each register stores the maximum rank ever observed for its bucket, which
// makes Add idempotent per item and order-independent. The estimate is a
// bias-corrected harmonic mean of 2^-register across all registers; when the
// raw estimate is small (<= 2.5m) and some registers are still zero, the
// estimator switches to linear counting, m * ln(m / zeroRegisters), which is
// far more accurate in that range.
//
// Known Bias
// ==========
//
// No large-range correction is applied. For cardinalities approaching the
// 64-bit hash space (~2^57 and beyond) hash collisions bias the estimate low.
// Practical streams never get close, so the correction and its extra branch
// are deliberately absent; treat estimates in that range as biased.
//
// Precision Trade-off
// ===================
//
//	p     registers   memory    standard error (1.04/sqrt(m))
//	---   ---------   ------    ------------------------------
//	 4           16     16 B    26.0%
//	 8          256    256 B     6.5%
//	12        4,096     4 KB     1.6%
//	14       16,384    16 KB     0.81%
//	16       65,536    64 KB     0.41%
//
// The sketch is an in-memory value with no internal locking; concurrent
// mutation must be prevented by the caller. Merge is commutative, associative
// and idempotent, which makes partitioned aggregation safe: shard the stream
// into per-worker sketches and merge the results in any order.
package hyperloglog

import (
	"errors"
	"math"
	"math/bits"

	"sketches.lopezb.com/xhash"
)

const (
	// MinPrecision and MaxPrecision bound the precision parameter p.
	// Below 4 the estimator's constants are meaningless; above 16 the
	// memory cost grows past any accuracy gain this module needs.
	MinPrecision = 4
	MaxPrecision = 16

	// DefaultPrecision gives a 0.81% standard error in 16KB.
	DefaultPrecision = 14
)

// ErrPrecision is returned when the precision parameter is outside [4, 16].
var ErrPrecision = errors.New("hyperloglog: precision must be in [4, 16]")

// ErrIncompatible is returned when merging sketches of different precisions.
var ErrIncompatible = errors.New("hyperloglog: sketches have different precisions")

// Sketch is a HyperLogLog cardinality estimator with 2^p one-byte registers.
type Sketch struct {
	precision uint8
	registers []uint8
	alpha     float64
}

// Info is the diagnostic snapshot returned by Info.
type Info struct {
	Precision     uint8   `json:"precision"`
	Registers     int     `json:"registers"`
	Estimate      uint64  `json:"estimate"`
	StandardError float64 `json:"standard_error"`
}

// New creates a sketch with m = 2^precision registers, all zero.
func New(precision uint8) (*Sketch, error) {
	if precision < MinPrecision || precision > MaxPrecision {
		return nil, ErrPrecision
	}

	m := 1 << precision

	return &Sketch{
		precision: precision,
		registers: make([]uint8, m),
		alpha:     alphaConstant(m),
	}, nil
}

// alphaConstant returns the bias-correction constant for m registers, using
// the standard piecewise formula from [1].
func alphaConstant(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

// Add incorporates an item into the estimate. Re-adding an item never changes
// any register, so the operation is idempotent and order-independent.
func (s *Sketch) Add(item []byte) {
	s.addHash(xhash.Sum64(item))
}

// AddString incorporates a string key without an intermediate copy.
func (s *Sketch) AddString(item string) {
	s.addHash(xhash.Sum64String(item))
}

func (s *Sketch) addHash(h uint64) {
	p := s.precision

	// Lower p bits pick the register; the remaining 64-p bits supply the
	// leading-zero run. Shifting the remainder left by p aligns its top bit
	// with bit 63 so LeadingZeros64 counts only the significant bits.
	idx := h & ((1 << p) - 1)
	rest := h >> p

	var rank uint8
	if rest == 0 {
		rank = 64 - p + 1 // all 64-p remaining bits are zero
	} else {
		rank = uint8(bits.LeadingZeros64(rest<<p)) + 1
	}

	if rank > s.registers[idx] {
		s.registers[idx] = rank
	}
}

// Count returns the estimated number of distinct items added so far.
func (s *Sketch) Count() uint64 {
	m := float64(len(s.registers))

	var sum float64
	zeros := 0
	for _, r := range s.registers {
		sum += math.Exp2(-float64(r))
		if r == 0 {
			zeros++
		}
	}

	raw := s.alpha * m * m / sum

	// Small-range correction: with zero registers remaining, linear counting
	// (a plain occupancy estimator) beats the harmonic mean below 2.5m.
	if raw <= 2.5*m && zeros > 0 {
		return uint64(math.Round(m * math.Log(m/float64(zeros))))
	}

	return uint64(math.Round(raw))
}

// Merge folds other into s by taking the register-wise maximum, yielding the
// sketch of the union of both streams. Merging a sketch into itself is a
// no-op, and merge order never affects the result.
func (s *Sketch) Merge(other *Sketch) error {
	if other == nil || s.precision != other.precision {
		return ErrIncompatible
	}

	for i, r := range other.registers {
		if r > s.registers[i] {
			s.registers[i] = r
		}
	}
	return nil
}

// Reset zeroes every register without reallocating.
func (s *Sketch) Reset() {
	clear(s.registers)
}

// Precision returns the configured precision p.
func (s *Sketch) Precision() uint8 {
	return s.precision
}

// Info returns the sketch's diagnostics, including the theoretical standard
// error 1.04/sqrt(m) of the estimator.
func (s *Sketch) Info() Info {
	return Info{
		Precision:     s.precision,
		Registers:     len(s.registers),
		Estimate:      s.Count(),
		StandardError: 1.04 / math.Sqrt(float64(len(s.registers))),
	}
}
