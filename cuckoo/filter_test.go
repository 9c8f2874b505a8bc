package cuckoo

import (
	"fmt"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	f, err := New(Config{Capacity: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if f.bucketSize != DefaultBucketSize {
		t.Errorf("bucket size: got %d, want %d", f.bucketSize, DefaultBucketSize)
	}
	if f.maxKicks != DefaultMaxKicks {
		t.Errorf("max kicks: got %d, want %d", f.maxKicks, DefaultMaxKicks)
	}

	// ceil(100/4*1.05) = 27, rounded up to 32 buckets.
	if f.size != 32 {
		t.Errorf("bucket count: got %d, want 32", f.size)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero capacity", Config{}},
		{"negative bucket size", Config{Capacity: 10, BucketSize: -1}},
		{"fingerprint too wide", Config{Capacity: 10, FingerprintBits: 17}},
		{"negative fingerprint", Config{Capacity: 10, FingerprintBits: -3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err != ErrInvalidConfig {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestFilter_AddContains(t *testing.T) {
	f, _ := New(DefaultConfig(100))

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("item-%d", i))
		if !f.Add(key) {
			t.Fatalf("Add(%q) failed well below capacity", key)
		}
		if !f.Contains(key) {
			t.Fatalf("Contains(%q) false immediately after Add returned true", key)
		}
	}

	if f.Count() != 50 {
		t.Errorf("count: got %d, want 50", f.Count())
	}
}

func TestFilter_NinetyPercentLoad(t *testing.T) {
	// 90 unique items into a 100-capacity filter
	// must all insert without relocation failure, and all must remain
	// visible afterwards.
	f, _ := New(DefaultConfig(100))

	for i := 0; i < 90; i++ {
		if !f.Add([]byte(fmt.Sprintf("load-%d", i))) {
			t.Fatalf("Add failed at item %d of 90", i)
		}
	}

	for i := 0; i < 90; i++ {
		key := []byte(fmt.Sprintf("load-%d", i))
		if !f.Contains(key) {
			t.Fatalf("item %q lost after successful Add (false negative)", key)
		}
	}

	if f.Info().KickFailures != 0 {
		t.Errorf("kick failures at 90%% of design capacity: got %d, want 0", f.Info().KickFailures)
	}
}

func TestFilter_Remove(t *testing.T) {
	f, _ := New(DefaultConfig(100))
	key := []byte("deletable")

	f.Add(key)
	if !f.Remove(key) {
		t.Fatal("Remove returned false for a present item")
	}
	if f.Contains(key) {
		t.Error("Contains true after Remove")
	}
	if f.Count() != 0 {
		t.Errorf("count after remove: got %d, want 0", f.Count())
	}

	if f.Remove(key) {
		t.Error("Remove returned true for an absent item")
	}
}

func TestFilter_RemoveOnlyOneCopy(t *testing.T) {
	f, _ := New(DefaultConfig(100))
	key := []byte("twice")

	f.Add(key)
	f.Add(key)

	if !f.Remove(key) {
		t.Fatal("first Remove failed")
	}
	if !f.Contains(key) {
		t.Error("second copy lost after removing one")
	}
	if !f.Remove(key) {
		t.Fatal("second Remove failed")
	}
	if f.Contains(key) {
		t.Error("Contains true after removing both copies")
	}
}

func TestFilter_OverflowIsCleanAndReported(t *testing.T) {
	// A tiny filter with a tiny kick budget must eventually reject an
	// insert, and the rejection must not disturb existing members.
	f, err := New(Config{Capacity: 8, BucketSize: 1, FingerprintBits: 8, MaxKicks: 2, Seed: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var members [][]byte
	rejected := false
	for i := 0; i < 200 && !rejected; i++ {
		key := []byte(fmt.Sprintf("ov-%d", i))
		if f.Add(key) {
			members = append(members, key)
		} else {
			rejected = true
		}
	}

	if !rejected {
		t.Fatal("no insert was ever rejected on an overfilled filter")
	}
	if f.Info().KickFailures == 0 {
		t.Error("kick failure not surfaced in Info")
	}

	// The failed insert must have been rolled back completely.
	for _, key := range members {
		if !f.Contains(key) {
			t.Fatalf("member %q lost after a rejected insert", key)
		}
	}
	if f.Count() != uint64(len(members)) {
		t.Errorf("count: got %d, want %d", f.Count(), len(members))
	}
}

func TestFilter_DeterministicWithSeed(t *testing.T) {
	run := func() []bool {
		f, _ := New(Config{Capacity: 16, BucketSize: 2, FingerprintBits: 12, MaxKicks: 10, Seed: 42})
		results := make([]bool, 100)
		for i := range results {
			results[i] = f.Add([]byte(fmt.Sprintf("d-%d", i)))
		}
		return results
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("insert %d differed between identical seeded runs", i)
		}
	}
}

func TestFilter_Reset(t *testing.T) {
	f, _ := New(DefaultConfig(100))
	for i := 0; i < 40; i++ {
		f.Add([]byte(fmt.Sprintf("r-%d", i)))
	}

	f.Reset()
	if f.Count() != 0 {
		t.Errorf("count after reset: got %d, want 0", f.Count())
	}
	if f.Contains([]byte("r-0")) {
		t.Error("reset filter still reports membership")
	}
}

func TestFilter_Info(t *testing.T) {
	f, _ := New(DefaultConfig(100))
	for i := 0; i < 32; i++ {
		f.Add([]byte(fmt.Sprintf("i-%d", i)))
	}

	info := f.Info()
	if info.Count != 32 {
		t.Errorf("count: got %d, want 32", info.Count)
	}
	wantLoad := 32.0 / float64(f.size*uint64(f.bucketSize))
	if info.LoadFactor != wantLoad {
		t.Errorf("load factor: got %f, want %f", info.LoadFactor, wantLoad)
	}
	// 2*4/2^16
	if want := 2.0 * 4.0 / 65536.0; info.FalsePositiveRate != want {
		t.Errorf("false positive rate: got %g, want %g", info.FalsePositiveRate, want)
	}
}

func TestAltIndex_Involution(t *testing.T) {
	f, _ := New(DefaultConfig(1000))

	for i := 0; i < 1000; i++ {
		fp, i1 := f.fingerprintAndIndex([]byte(fmt.Sprintf("inv-%d", i)))
		i2 := f.altIndex(i1, fp)
		if back := f.altIndex(i2, fp); back != i1 {
			t.Fatalf("altIndex not self-inverse: %d -> %d -> %d", i1, i2, back)
		}
	}
}
