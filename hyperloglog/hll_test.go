package hyperloglog

import (
	"fmt"
	"math"
	"testing"
)

func TestNew_PrecisionBounds(t *testing.T) {
	for _, p := range []uint8{4, 10, 16} {
		s, err := New(p)
		if err != nil {
			t.Fatalf("New(%d) failed: %v", p, err)
		}
		if len(s.registers) != 1<<p {
			t.Errorf("New(%d): got %d registers, want %d", p, len(s.registers), 1<<p)
		}
	}

	for _, p := range []uint8{0, 3, 17, 64} {
		if _, err := New(p); err != ErrPrecision {
			t.Errorf("New(%d): got %v, want ErrPrecision", p, err)
		}
	}
}

func TestAlphaConstant(t *testing.T) {
	cases := []struct {
		m    int
		want float64
	}{
		{16, 0.673},
		{32, 0.697},
		{64, 0.709},
		{16384, 0.7213 / (1 + 1.079/16384.0)},
	}

	for _, tc := range cases {
		if got := alphaConstant(tc.m); got != tc.want {
			t.Errorf("alphaConstant(%d): got %f, want %f", tc.m, got, tc.want)
		}
	}
}

func TestSketch_SmallCardinality(t *testing.T) {
	// In the linear-counting range the estimate should be nearly exact.
	s, _ := New(14)
	for i := 0; i < 100; i++ {
		s.Add([]byte(fmt.Sprintf("item-%d", i)))
	}

	got := s.Count()
	if got < 95 || got > 105 {
		t.Errorf("estimate for 100 distinct items: got %d", got)
	}
}

func TestSketch_LargeCardinality(t *testing.T) {
	// 100k distinct items at p=14: standard error is 1.04/sqrt(16384) = 0.81%.
	// Allow ~3x the standard error to absorb the raw estimator's residual
	// bias in the mid-range.
	const n = 100000
	s, _ := New(14)
	for i := 0; i < n; i++ {
		s.Add([]byte(fmt.Sprintf("item-%d", i)))
	}

	got := float64(s.Count())
	relErr := math.Abs(got-n) / n
	if relErr > 0.025 {
		t.Errorf("estimate %v for %d distinct items, relative error %.4f", got, n, relErr)
	}
}

func TestSketch_Idempotent(t *testing.T) {
	s, _ := New(12)
	for i := 0; i < 50; i++ {
		s.Add([]byte("the same key"))
	}

	got := s.Count()
	if got != 1 {
		t.Errorf("estimate after 50 adds of one key: got %d, want 1", got)
	}
}

func TestSketch_MergeIdempotent(t *testing.T) {
	a, _ := New(12)
	for i := 0; i < 1000; i++ {
		a.Add([]byte(fmt.Sprintf("k%d", i)))
	}

	before := append([]uint8(nil), a.registers...)
	if err := a.Merge(a); err != nil {
		t.Fatalf("self-merge failed: %v", err)
	}

	for i, r := range a.registers {
		if r != before[i] {
			t.Fatalf("register %d changed on self-merge: got %d, want %d", i, r, before[i])
		}
	}
}

func TestSketch_MergeCommutative(t *testing.T) {
	build := func(prefix string, n int) *Sketch {
		s, _ := New(12)
		for i := 0; i < n; i++ {
			s.Add([]byte(fmt.Sprintf("%s-%d", prefix, i)))
		}
		return s
	}

	ab1, ab2 := build("a", 500), build("b", 700)
	ba1, ba2 := build("b", 700), build("a", 500)

	if err := ab1.Merge(ab2); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := ba1.Merge(ba2); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	for i := range ab1.registers {
		if ab1.registers[i] != ba1.registers[i] {
			t.Fatalf("register %d differs between merge orders: %d vs %d",
				i, ab1.registers[i], ba1.registers[i])
		}
	}
}

func TestSketch_MergeUnion(t *testing.T) {
	a, _ := New(14)
	b, _ := New(14)

	// Overlapping sets: 0..5999 and 4000..9999, union is 10000 distinct.
	for i := 0; i < 6000; i++ {
		a.Add([]byte(fmt.Sprintf("k%d", i)))
	}
	for i := 4000; i < 10000; i++ {
		b.Add([]byte(fmt.Sprintf("k%d", i)))
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got := float64(a.Count())
	if math.Abs(got-10000)/10000 > 0.03 {
		t.Errorf("union estimate: got %v, want ~10000", got)
	}
}

func TestSketch_MergeIncompatible(t *testing.T) {
	a, _ := New(12)
	b, _ := New(14)

	if err := a.Merge(b); err != ErrIncompatible {
		t.Errorf("got %v, want ErrIncompatible", err)
	}
	if err := a.Merge(nil); err != ErrIncompatible {
		t.Errorf("Merge(nil): got %v, want ErrIncompatible", err)
	}
}

func TestSketch_Reset(t *testing.T) {
	s, _ := New(10)
	for i := 0; i < 500; i++ {
		s.Add([]byte(fmt.Sprintf("k%d", i)))
	}

	s.Reset()
	if got := s.Count(); got != 0 {
		t.Errorf("estimate after reset: got %d, want 0", got)
	}
}

func TestSketch_Info(t *testing.T) {
	s, _ := New(14)
	info := s.Info()

	if info.Precision != 14 {
		t.Errorf("precision: got %d, want 14", info.Precision)
	}
	if info.Registers != 16384 {
		t.Errorf("registers: got %d, want 16384", info.Registers)
	}
	want := 1.04 / math.Sqrt(16384)
	if math.Abs(info.StandardError-want) > 1e-12 {
		t.Errorf("standard error: got %f, want %f", info.StandardError, want)
	}
}

func BenchmarkSketch_Add(b *testing.B) {
	s, _ := New(14)
	keys := make([][]byte, 1024)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("bench-key-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Add(keys[i&1023])
	}
}

func BenchmarkSketch_Count(b *testing.B) {
	s, _ := New(14)
	for i := 0; i < 100000; i++ {
		s.Add([]byte(fmt.Sprintf("k%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Count()
	}
}
