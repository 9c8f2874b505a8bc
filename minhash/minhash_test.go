package minhash

import (
	"fmt"
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	s, err := New(128, 7)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.NumPerm() != 128 {
		t.Errorf("numPerm: got %d, want 128", s.NumPerm())
	}
	if s.Seed() != 7 {
		t.Errorf("seed: got %d, want 7", s.Seed())
	}

	for i, v := range s.sig {
		if v != math.MaxUint64 {
			t.Fatalf("slot %d of empty signature: got %d, want MaxUint64", i, v)
		}
	}
	for i, a := range s.a {
		if a%2 == 0 {
			t.Fatalf("multiplier %d is even: %d", i, a)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	for _, n := range []int{0, -5} {
		if _, err := New(n, 1); err != ErrInvalidConfig {
			t.Errorf("New(%d): got %v, want ErrInvalidConfig", n, err)
		}
	}
}

func TestNew_DeterministicPermutations(t *testing.T) {
	a, _ := New(64, 33)
	b, _ := New(64, 33)

	for i := range a.a {
		if a.a[i] != b.a[i] || a.b[i] != b.b[i] {
			t.Fatalf("permutation %d differs between identical seeds", i)
		}
	}
}

func TestSignature_SelfSimilarity(t *testing.T) {
	s, _ := New(128, 1)
	for i := 0; i < 500; i++ {
		s.Update([]byte(fmt.Sprintf("item-%d", i)))
	}

	j, err := s.Jaccard(s)
	if err != nil {
		t.Fatalf("Jaccard failed: %v", err)
	}
	if j != 1.0 {
		t.Errorf("self-similarity: got %f, want exactly 1.0", j)
	}
}

func TestSignature_KnownOverlap(t *testing.T) {
	// A = {0..1999}, B = {0..999}: intersection 1000, union 2000,
	// true Jaccard 0.5. With 256 permutations the standard error is
	// 1/16 = 0.0625, so +-0.1 is comfortably above two sigma.
	a, _ := New(256, 9)
	b, _ := New(256, 9)

	for i := 0; i < 2000; i++ {
		a.Update([]byte(fmt.Sprintf("elem-%d", i)))
	}
	for i := 0; i < 1000; i++ {
		b.Update([]byte(fmt.Sprintf("elem-%d", i)))
	}

	j, err := a.Jaccard(b)
	if err != nil {
		t.Fatalf("Jaccard failed: %v", err)
	}
	if math.Abs(j-0.5) > 0.1 {
		t.Errorf("estimated Jaccard %f, want 0.5 +- 0.1", j)
	}
}

func TestSignature_DisjointSets(t *testing.T) {
	a, _ := New(128, 5)
	b, _ := New(128, 5)

	for i := 0; i < 500; i++ {
		a.Update([]byte(fmt.Sprintf("left-%d", i)))
		b.Update([]byte(fmt.Sprintf("right-%d", i)))
	}

	j, _ := a.Jaccard(b)
	if j > 0.1 {
		t.Errorf("disjoint sets estimated at %f, want near 0", j)
	}
}

func TestSignature_CumulativeUpdate(t *testing.T) {
	// One Update with all items and several Updates with slices of them
	// must produce identical signatures.
	all, _ := New(64, 2)
	batched, _ := New(64, 2)

	items := make([][]byte, 300)
	for i := range items {
		items[i] = []byte(fmt.Sprintf("c-%d", i))
	}

	all.Update(items...)
	batched.Update(items[:100]...)
	batched.Update(items[100:250]...)
	batched.Update(items[250:]...)

	for i := range all.sig {
		if all.sig[i] != batched.sig[i] {
			t.Fatalf("slot %d differs between single and batched updates", i)
		}
	}
}

func TestSignature_MergeIsUnion(t *testing.T) {
	union, _ := New(128, 3)
	left, _ := New(128, 3)
	right, _ := New(128, 3)

	for i := 0; i < 400; i++ {
		key := []byte(fmt.Sprintf("u-%d", i))
		union.Update(key)
		if i%2 == 0 {
			left.Update(key)
		} else {
			right.Update(key)
		}
	}

	if err := left.Merge(right); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	for i := range union.sig {
		if union.sig[i] != left.sig[i] {
			t.Fatalf("slot %d: merged %d, direct union %d", i, left.sig[i], union.sig[i])
		}
	}
}

func TestSignature_Incompatible(t *testing.T) {
	a, _ := New(128, 1)
	b, _ := New(64, 1)  // different numPerm
	c, _ := New(128, 2) // different seed

	if _, err := a.Jaccard(b); err != ErrIncompatible {
		t.Errorf("numPerm mismatch: got %v, want ErrIncompatible", err)
	}
	if _, err := a.Jaccard(c); err != ErrIncompatible {
		t.Errorf("seed mismatch: got %v, want ErrIncompatible", err)
	}
	if err := a.Merge(b); err != ErrIncompatible {
		t.Errorf("merge mismatch: got %v, want ErrIncompatible", err)
	}
	if _, err := a.Jaccard(nil); err != ErrIncompatible {
		t.Errorf("nil: got %v, want ErrIncompatible", err)
	}
}

func TestSignature_Reset(t *testing.T) {
	s, _ := New(64, 1)
	s.UpdateString("a", "b", "c")

	s.Reset()
	for i, v := range s.sig {
		if v != math.MaxUint64 {
			t.Fatalf("slot %d after reset: got %d, want MaxUint64", i, v)
		}
	}
}

func TestSignature_Info(t *testing.T) {
	s, _ := New(256, 11)
	info := s.Info()

	if info.NumPerm != 256 || info.Seed != 11 {
		t.Error("info does not reflect construction parameters")
	}
	if want := 1.0 / 16.0; info.StandardError != want {
		t.Errorf("standard error: got %f, want %f", info.StandardError, want)
	}
}

func TestMulmod_StaysInRange(t *testing.T) {
	for _, c := range []struct{ a, h, b uint64 }{
		{1, 1, 0},
		{mersennePrime - 1, mersennePrime - 1, mersennePrime - 1},
		{0x12345678, 0x9ABCDEF0, 42},
	} {
		if v := mulmod(c.a, c.h, c.b); v >= mersennePrime {
			t.Errorf("mulmod(%d,%d,%d) = %d, out of range", c.a, c.h, c.b, v)
		}
	}
}
