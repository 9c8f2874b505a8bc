// Package cms implements the Count-Min Sketch for approximate frequency
// counting.
//
// A Count-Min Sketch (CMS) estimates how many times each key has appeared in
// a stream using a depth x width grid of counters: sub-linear space at the
// cost of one-sided error: the estimate may overshoot the true count but
// never undershoots it.
//
// The Algorithm
// =============
//
// Each of the depth rows owns an independent seeded hash function. Adding an
// item hashes it once per row to a column in [0, width) and raises that cell
// by the delta. Querying takes the minimum cell across rows: every cell is an
// upper bound on the item's true count (collisions only add), so the minimum
// is the tightest bound available.
//
// Error bounds (Cormode & Muthukrishnan): with total stream weight N, the
// estimate exceeds the true count by more than (e/width)*N with probability
// at most e^-depth. Widen the table for accuracy, deepen it for confidence.
//
// Mergeability
// ============
//
// Two sketches with identical dimensions and seeds are mergeable by
// element-wise addition, giving exactly the sketch of the concatenated
// streams. This is why the update rule is the plain "raise every row"
// CMS rather than the conservative-update variant: conservative update
// tightens point estimates but destroys the linearity that Merge depends on.
//
// The sketch stores nothing per key (no exact side tables), so memory is
// fixed at construction no matter how many items flow through. It is an
// in-memory value with no internal locking; concurrent mutation must be
// prevented by the caller.
package cms

import (
	"errors"
	"math"

	"sketches.lopezb.com/xhash"
)

var (
	// ErrInvalidConfig is returned for zero width or depth.
	ErrInvalidConfig = errors.New("cms: width and depth must be > 0")

	// ErrIncompatible is returned when merging sketches whose dimensions or
	// hash seeds differ.
	ErrIncompatible = errors.New("cms: sketches have mismatched dimensions or seeds")
)

// DefaultSeed is the base seed used by New. Sketches built by New are
// mutually mergeable; use NewSeeded to isolate a hash family.
const DefaultSeed = 0x1F0E1D2C3B4A5968

// Sketch is a Count-Min Sketch: a depth x width grid of non-negative
// counters stored row-major, with one hash seed per row.
type Sketch struct {
	width  uint32
	depth  uint32
	seeds  []uint64 // one per row, derived from the base seed
	grid   []uint64 // depth*width counters, row-major
	total  uint64   // sum of all added deltas
	seed   uint64   // base seed, part of merge compatibility
	hasher xhash.Hasher
}

// Info is the diagnostic snapshot returned by Info.
type Info struct {
	Width              uint32  `json:"width"`
	Depth              uint32  `json:"depth"`
	TotalItems         uint64  `json:"total_items"`
	ErrorBound         float64 `json:"error_bound"`
	FailureProbability float64 `json:"failure_probability"`
}

// New creates a sketch with the given dimensions and the package default seed.
//
// Typical sizes:
//
//	width=2000, depth=5  ~80KB   overestimate <= 0.14% of stream weight
//	width=272,  depth=5  ~11KB   overestimate <= 1% of stream weight
func New(width, depth uint32) (*Sketch, error) {
	return NewSeeded(width, depth, DefaultSeed)
}

// NewSeeded creates a sketch whose row hash functions derive from seed.
// Sketches are only mergeable when width, depth and seed all match.
func NewSeeded(width, depth uint32, seed uint64) (*Sketch, error) {
	return NewWithHasher(width, depth, seed, xhash.Default)
}

// NewWithHasher creates a seeded sketch that hashes through h instead of the
// stock xxHash64 family. Two sketches are mergeable only when they were built
// with the same hasher in addition to matching dimensions and seed; the
// sketch cannot verify that, so it is the caller's contract to keep.
func NewWithHasher(width, depth uint32, seed uint64, h xhash.Hasher) (*Sketch, error) {
	if width == 0 || depth == 0 || h == nil {
		return nil, ErrInvalidConfig
	}

	// Derive one independent seed per row by walking SplitMix64 from the
	// base seed. The derivation is deterministic, so two sketches with the
	// same base seed share the exact same hash family.
	seeds := make([]uint64, depth)
	rng := xhash.NewRNG(seed)
	for i := range seeds {
		seeds[i] = rng.Next()
	}

	return &Sketch{
		width:  width,
		depth:  depth,
		seeds:  seeds,
		grid:   make([]uint64, uint64(width)*uint64(depth)),
		seed:   seed,
		hasher: h,
	}, nil
}

// DimensionsFromProb converts error parameters to dimensions using the
// standard CMS bounds: width = ceil(e/epsilon), depth = ceil(ln(1/delta)).
// Epsilon is the relative error (fraction of the total stream weight) and
// delta the probability of exceeding it.
func DimensionsFromProb(epsilon, delta float64) (width, depth uint32) {
	if epsilon <= 0 {
		epsilon = 0.001
	}
	if delta <= 0 {
		delta = 0.01
	}

	width = uint32(math.Ceil(math.E / epsilon))
	depth = uint32(math.Ceil(math.Log(1 / delta)))

	if width < 1 {
		width = 1
	}
	if depth < 1 {
		depth = 1
	}
	return width, depth
}

// Add raises the item's counter in every row by count.
func (s *Sketch) Add(item []byte, count uint64) {
	if count == 0 {
		return
	}

	for i := uint32(0); i < s.depth; i++ {
		col := s.hasher.Sum64Seed(item, s.seeds[i]) % uint64(s.width)
		s.grid[uint64(i)*uint64(s.width)+col] += count
	}
	s.total += count
}

// AddString is the string-key variant of Add with count 1.
func (s *Sketch) AddString(item string) {
	s.Add([]byte(item), 1)
}

// Estimate returns the estimated frequency of the item: the minimum counter
// across all rows. The estimate is always >= the true frequency.
func (s *Sketch) Estimate(item []byte) uint64 {
	min := uint64(math.MaxUint64)
	for i := uint32(0); i < s.depth; i++ {
		col := s.hasher.Sum64Seed(item, s.seeds[i]) % uint64(s.width)
		if v := s.grid[uint64(i)*uint64(s.width)+col]; v < min {
			min = v
		}
	}
	return min
}

// Merge adds other's counters into s element-wise. The result is exactly the
// sketch that would have been produced by feeding both streams into one
// sketch. Both sketches must share width, depth and seed.
func (s *Sketch) Merge(other *Sketch) error {
	if other == nil || s.width != other.width || s.depth != other.depth || s.seed != other.seed {
		return ErrIncompatible
	}

	for i, v := range other.grid {
		s.grid[i] += v
	}
	s.total += other.total
	return nil
}

// Reset zeroes every counter and the running total without reallocating.
func (s *Sketch) Reset() {
	clear(s.grid)
	s.total = 0
}

// Width returns the number of columns per row.
func (s *Sketch) Width() uint32 { return s.width }

// Depth returns the number of rows.
func (s *Sketch) Depth() uint32 { return s.depth }

// Total returns the sum of all deltas added since construction or Reset.
func (s *Sketch) Total() uint64 { return s.total }

// Info returns the sketch's diagnostics. ErrorBound is the theoretical
// worst-case overestimate (e/width)*total; FailureProbability is e^-depth,
// the chance an estimate exceeds that bound.
func (s *Sketch) Info() Info {
	return Info{
		Width:              s.width,
		Depth:              s.depth,
		TotalItems:         s.total,
		ErrorBound:         math.E / float64(s.width) * float64(s.total),
		FailureProbability: math.Exp(-float64(s.depth)),
	}
}
