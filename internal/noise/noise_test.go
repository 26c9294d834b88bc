package noise

import (
	"math/rand"
	"testing"
)

func kernels() map[string]Kernel {
	return map[string]Kernel{
		"perlin":  NewPerlin(42),
		"simplex": NewSimplex(42),
	}
}

// TestKernelRange verifies every kernel stays in [0,1].
func TestKernelRange(t *testing.T) {
	rng := rand.New(rand.NewSource(12345)) // deterministic test RNG
	for name, k := range kernels() {
		for i := 0; i < 2000; i++ {
			x := rng.Float64()*200 - 100
			y := rng.Float64()*200 - 100
			if v := k.Eval(x, y); v < 0 || v > 1 {
				t.Fatalf("%s.Eval(%f, %f) = %f, expected in [0,1]", name, x, y, v)
			}
		}
	}
}

// TestKernelDeterministic verifies identical seeds produce identical values.
func TestKernelDeterministic(t *testing.T) {
	a, b := NewPerlin(7), NewPerlin(7)
	s1, s2 := NewSimplex(7), NewSimplex(7)
	for i := 0; i < 50; i++ {
		x, y := float64(i)*0.37, float64(i)*0.11
		if a.Eval(x, y) != b.Eval(x, y) {
			t.Fatalf("perlin not deterministic at (%f,%f)", x, y)
		}
		if s1.Eval(x, y) != s2.Eval(x, y) {
			t.Fatalf("simplex not deterministic at (%f,%f)", x, y)
		}
	}
}

// TestFBMNormalised checks fBM never leaves the kernel range, however many
// octaves or whatever persistence/lacunarity is used.
func TestFBMNormalised(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for name, k := range kernels() {
		for octaves := 1; octaves <= 10; octaves++ {
			for _, persistence := range []float64{0.25, 0.5, 1, 2} {
				for _, lacunarity := range []float64{0.5, 2, 3} {
					x, y := rng.Float64()*50, rng.Float64()*50
					v := FBM(k, x, y, octaves, persistence, lacunarity)
					if v < 0 || v > 1 {
						t.Fatalf("%s FBM(oct=%d, p=%f, l=%f) = %f out of [0,1]",
							name, octaves, persistence, lacunarity, v)
					}
				}
			}
		}
	}
}

func TestFBMConstantKernel(t *testing.T) {
	k := Func(func(x, y float64) float64 { return 0.75 })
	for octaves := 1; octaves < 8; octaves++ {
		if v := FBM(k, 1, 2, octaves, 0.5, 2); v != 0.75 {
			t.Errorf("FBM of constant 0.75 with %d octaves = %f", octaves, v)
		}
	}
	if v := FBM(k, 1, 2, 0, 0.5, 2); v != 0 {
		t.Errorf("FBM with 0 octaves = %f, want 0", v)
	}
}

func TestNewKind(t *testing.T) {
	if _, err := New("perlin", 1); err != nil {
		t.Errorf("perlin: %v", err)
	}
	if _, err := New("Simplex", 1); err != nil {
		t.Errorf("simplex: %v", err)
	}
	if _, err := New("", 1); err != nil {
		t.Errorf("default: %v", err)
	}
	if _, err := New("worley", 1); err == nil {
		t.Error("expected error for unknown kernel")
	}
}
