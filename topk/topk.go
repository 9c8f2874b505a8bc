// Package topk implements an approximate "k most frequent keys" tracker on
// top of a Count-Min Sketch.
//
// The tracker keeps a Count-Min Sketch for frequency estimation and a small
// ordered list of at most k (key, estimate) entries. On every Add the sketch
// is updated first, then the key's fresh estimate decides its fate:
//
//   - an already-tracked key has its entry updated and re-positioned;
//   - while fewer than k keys are tracked, the key is inserted;
//   - otherwise the key replaces the current minimum only when its estimate
//     is strictly greater.
//
// The list is always sorted descending by estimate, so TopK is a copy, not a
// computation.
//
// Accuracy Caveats
// ================
//
// The estimates inherit the Count-Min Sketch's one-sided error: each is an
// upper bound on the true frequency. With a near-uniform stream, the
// borderline entries of the list are noise: any of the roughly-tied keys may
// enter or leave as collisions shift their estimates. That churn is the
// documented approximation, not a bug; the genuinely heavy keys stay ranked
// correctly as long as their true counts clear the sketch's error bound.
//
// The tracker is an in-memory value with no internal locking; concurrent
// mutation must be prevented by the caller.
package topk

import (
	"errors"
	"sort"

	"sketches.lopezb.com/cms"
)

// ErrInvalidConfig is returned for a non-positive k; sketch dimension errors
// propagate from the cms package.
var ErrInvalidConfig = errors.New("topk: k must be > 0")

// Entry is one tracked key with its current frequency estimate.
type Entry struct {
	Key      string `json:"key"`
	Estimate uint64 `json:"estimate"`
}

// Tracker maintains the approximate top-k keys of a stream.
type Tracker struct {
	k       int
	sketch  *cms.Sketch
	entries []Entry // sorted descending by Estimate, len <= k
}

// Info is the diagnostic snapshot returned by Info.
type Info struct {
	K       int    `json:"k"`
	Width   uint32 `json:"width"`
	Depth   uint32 `json:"depth"`
	Tracked int    `json:"tracked"`
	Total   uint64 `json:"total_items"`
}

// New creates a tracker for the k most frequent keys, with a width x depth
// Count-Min Sketch as its frequency oracle.
func New(k int, width, depth uint32) (*Tracker, error) {
	if k < 1 {
		return nil, ErrInvalidConfig
	}

	sketch, err := cms.New(width, depth)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		k:       k,
		sketch:  sketch,
		entries: make([]Entry, 0, k),
	}, nil
}

// Add feeds count occurrences of the key into the tracker.
func (t *Tracker) Add(item []byte, count uint64) {
	if count == 0 {
		return
	}

	t.sketch.Add(item, count)
	est := t.sketch.Estimate(item)
	key := string(item)

	// Tracked already: refresh the estimate and restore the ordering.
	// Estimates only grow, so the entry can only move toward the front.
	for i := range t.entries {
		if t.entries[i].Key == key {
			t.entries[i].Estimate = est
			for i > 0 && t.entries[i-1].Estimate < t.entries[i].Estimate {
				t.entries[i-1], t.entries[i] = t.entries[i], t.entries[i-1]
				i--
			}
			return
		}
	}

	if len(t.entries) < t.k {
		t.insert(Entry{Key: key, Estimate: est})
		return
	}

	// List is full: displace the minimum only on a strictly greater
	// estimate, so ties keep the incumbent.
	if est > t.entries[len(t.entries)-1].Estimate {
		t.entries = t.entries[:len(t.entries)-1]
		t.insert(Entry{Key: key, Estimate: est})
	}
}

// AddString is the string-key variant of Add with count 1.
func (t *Tracker) AddString(item string) {
	t.Add([]byte(item), 1)
}

// insert places e at its sorted position. The list is at most k entries, so
// a binary search plus copy beats any heap bookkeeping at this size.
func (t *Tracker) insert(e Entry) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Estimate < e.Estimate
	})

	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
}

// TopK returns a copy of the current entries, sorted descending by estimate.
func (t *Tracker) TopK() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Estimate returns the sketch's frequency estimate for a key, tracked or not.
func (t *Tracker) Estimate(item []byte) uint64 {
	return t.sketch.Estimate(item)
}

// K returns the configured list capacity.
func (t *Tracker) K() int { return t.k }

// Reset clears the tracked list and the underlying sketch.
func (t *Tracker) Reset() {
	t.sketch.Reset()
	t.entries = t.entries[:0]
}

// Info returns the tracker's diagnostics.
func (t *Tracker) Info() Info {
	return Info{
		K:       t.k,
		Width:   t.sketch.Width(),
		Depth:   t.sketch.Depth(),
		Tracked: len(t.entries),
		Total:   t.sketch.Total(),
	}
}
