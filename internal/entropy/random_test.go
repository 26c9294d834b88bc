package entropy

import "testing"

func TestSeededDeterministic(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %f != %f", i, x, y)
		}
	}
}

func TestSeededZeroDrawsSeed(t *testing.T) {
	s := NewSeeded(0)
	if s.Seed() == 0 {
		t.Error("seed 0 should be replaced with a random seed")
	}
}

func TestRangeBounds(t *testing.T) {
	src := NewSeeded(7)
	for i := 0; i < 1000; i++ {
		v := Range(src, 0.25, 0.75)
		if v < 0.25 || v >= 0.75 {
			t.Fatalf("Range out of bounds: %f", v)
		}
		n := IntRange(src, 3, 9)
		if n < 3 || n >= 9 {
			t.Fatalf("IntRange out of bounds: %d", n)
		}
	}
	if v := Range(src, 0.5, 0.5); v != 0.5 {
		t.Errorf("degenerate Range = %f, want 0.5", v)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	src := NewSeeded(3)
	vals := []int{0, 1, 2, 3, 4, 5, 6, 7}
	Shuffle(src, len(vals), func(i, j int) { vals[i], vals[j] = vals[j], vals[i] })
	seen := make(map[int]bool)
	for _, v := range vals {
		seen[v] = true
	}
	if len(seen) != 8 {
		t.Errorf("shuffle lost elements: %v", vals)
	}
}

func TestSequenceReplays(t *testing.T) {
	s := NewSequence(0.1, 0.9)
	if s.Float64() != 0.1 || s.Float64() != 0.9 || s.Float64() != 0.1 {
		t.Error("sequence did not wrap in order")
	}
	if n := NewSequence(0.99).Intn(5); n != 4 {
		t.Errorf("Intn(5) of 0.99 = %d, want 4", n)
	}
	if s.Draws() != 3 {
		t.Errorf("draws = %d, want 3", s.Draws())
	}
}
