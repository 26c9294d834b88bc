package terrain

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
)

const eps = 1e-9

func newTestGenerator(seed int64) *Generator {
	return NewGenerator(entropy.NewSeeded(seed), noise.NewPerlin(seed))
}

func assertFloor(t *testing.T, g *heightmap.Grid) {
	t.Helper()
	if m := g.Min(); math.Abs(m) > eps {
		t.Errorf("min height = %g, want 0", m)
	}
	for _, v := range g.Values() {
		if v < -eps {
			t.Fatalf("negative height %g after floor normalisation", v)
		}
	}
}

func TestPerlinSingleLayerScenario(t *testing.T) {
	layer := NoiseLayer{
		XScale: 0.05, YScale: 0.05, ZScale: 1,
		Octaves: 3, Persistence: 0.5, Lacunarity: 2,
	}
	base := heightmap.MustNew(5)

	a := newTestGenerator(11).Perlin(base, []NoiseLayer{layer}, true, false)
	b := newTestGenerator(11).Perlin(base, []NoiseLayer{layer}, true, false)

	assertFloor(t, a)
	if !a.Equal(b, 0) {
		t.Error("perlin pass not deterministic for identical inputs")
	}
	if base.Max() != 0 {
		t.Error("perlin pass mutated its input grid")
	}
}

func TestPerlinFloorOnExistingTerrain(t *testing.T) {
	base := heightmap.MustNew(17)
	base.Fill(0.4)
	base.Set(3, 3, 0.9)

	layers := []NoiseLayer{DefaultNoiseLayer(), {
		XScale: 0.2, YScale: 0.1, ZScale: 0.3,
		Octaves: 5, Persistence: 0.6, Lacunarity: 2.5,
	}}
	for _, randomize := range []bool{false, true} {
		out := newTestGenerator(5).Perlin(base, layers, false, randomize)
		assertFloor(t, out)
	}
}

func TestPerlinEmptyLayersUnchanged(t *testing.T) {
	base := heightmap.MustNew(4)
	base.Fill(0.3)
	out := newTestGenerator(1).Perlin(base, nil, false, false)
	if !out.Equal(base, 0) {
		t.Error("empty layer list should leave the grid unchanged")
	}
	if out == base {
		t.Error("perlin should return a new grid")
	}
}

func TestRadialPeakPlateauScenario(t *testing.T) {
	params := RadialPeakParams{
		PeakCount: 1,
		HeightMin: 0.5, HeightMax: 0.5,
		ScaleMin: 5, ScaleMax: 5,
		SmoothnessMin: 1, SmoothnessMax: 1,
		Amplitude: 0,
	}
	// height, scale, smoothness, then apex x and y: Intn(5) of 0.5 is 2.
	src := entropy.NewSequence(0, 0, 0, 0.5, 0.5)
	gen := NewGenerator(src, noise.NewPerlin(1))

	out := gen.RadialPeaks(heightmap.MustNew(5), params, true)

	if got := out.At(2, 2); math.Abs(got-0.5) > eps {
		t.Errorf("apex = %g, want 0.5", got)
	}
	for _, p := range []heightmap.Point{{X: 2, Y: 1}, {X: 1, Y: 2}, {X: 3, Y: 2}, {X: 2, Y: 3}} {
		if got := out.At(p.X, p.Y); math.Abs(got-0.5) > eps {
			t.Errorf("plateau cell %v = %g, want 0.5", p, got)
		}
	}
	for _, p := range []heightmap.Point{{X: 0, Y: 0}, {X: 4, Y: 4}, {X: 2, Y: 0}, {X: 0, Y: 2}} {
		if got := out.At(p.X, p.Y); got != 0 {
			t.Errorf("cell %v beyond peak radius = %g, want 0", p, got)
		}
	}
	assertFloor(t, out)
}

func TestPlacePeakRejection(t *testing.T) {
	g := heightmap.MustNew(9)
	g.Fill(0.2)
	g.Set(4, 4, 0.8)
	before := g.Clone()

	if PlacePeak(g, Peak{X: 4, Y: 4, Height: 0.6, Scale: 2, Smoothness: 1}, 0.5) {
		t.Error("peak lower than the existing apex should be rejected")
	}
	if PlacePeak(g, Peak{X: 9, Y: 0, Height: 1, Scale: 2, Smoothness: 1}, 0.5) {
		t.Error("peak with out-of-range apex should be rejected")
	}
	if PlacePeak(g, Peak{X: -1, Y: 3, Height: 1, Scale: 2, Smoothness: 1}, 0.5) {
		t.Error("peak with negative apex should be rejected")
	}
	if !g.Equal(before, 0) {
		t.Error("rejected peaks must leave the grid untouched")
	}
}

func TestRadialPeaksMaxCompositing(t *testing.T) {
	src := entropy.NewSeeded(21)
	g := heightmap.MustNew(33)
	params := DefaultRadialPeakParams()

	for i := 0; i < 20; i++ {
		prev := g.Clone()
		p := Peak{
			X:          src.Intn(33),
			Y:          src.Intn(33),
			Height:     entropy.Range(src, params.HeightMin, params.HeightMax),
			Scale:      entropy.Range(src, params.ScaleMin, params.ScaleMax),
			Smoothness: entropy.Range(src, params.SmoothnessMin, params.SmoothnessMax),
		}
		PlacePeak(g, p, params.Amplitude)
		for j, v := range g.Values() {
			if v < prev.Values()[j] {
				t.Fatalf("peak %d lowered cell %d from %g to %g", i, j, prev.Values()[j], v)
			}
		}
	}
}

func TestRadialPeaksFloor(t *testing.T) {
	out := newTestGenerator(8).RadialPeaks(heightmap.MustNew(33), DefaultRadialPeakParams(), true)
	assertFloor(t, out)
	if out.Max() <= 0 {
		t.Error("expected some raised terrain")
	}
}

func TestMidpointDisplacementDeterministic(t *testing.T) {
	params := DefaultDisplacementParams()
	for _, res := range []int{3, 5, 17, 33} {
		base := heightmap.MustNew(res)
		a := newTestGenerator(42).MidpointDisplacement(base, params, true)
		b := newTestGenerator(42).MidpointDisplacement(base, params, true)
		if !a.Equal(b, 0) {
			t.Errorf("res %d: identical seeds produced different grids", res)
		}
		c := newTestGenerator(43).MidpointDisplacement(base, params, true)
		if a.Equal(c, 0) {
			t.Errorf("res %d: different seeds produced identical grids", res)
		}
	}
}

func TestMidpointDisplacementOddSizes(t *testing.T) {
	// Sizes that are not 2^n+1 run into the grid edge and must not panic.
	for _, res := range []int{2, 4, 6, 10, 20} {
		out := newTestGenerator(3).MidpointDisplacement(heightmap.MustNew(res), DefaultDisplacementParams(), true)
		if out.Resolution() != res {
			t.Errorf("resolution changed from %d to %d", res, out.Resolution())
		}
	}
}

func TestMidpointDisplacementZeroRangeKeepsBase(t *testing.T) {
	base := heightmap.MustNew(9)
	base.Fill(0.3)
	params := DisplacementParams{Roughness: 1, DampenerPower: 2, HeightScale: 1}
	out := newTestGenerator(9).MidpointDisplacement(base, params, false)
	if !out.Equal(base, eps) {
		t.Error("zero perturbation range should leave the base unchanged")
	}
}

func TestSmooth(t *testing.T) {
	g := heightmap.MustNew(5)
	g.Fill(0.4)
	if out := Smooth(g, 2); !out.Equal(g, eps) {
		t.Error("smoothing a flat grid should not change it")
	}

	spike := heightmap.MustNew(5)
	spike.Set(2, 2, 0.9)
	out := Smooth(spike, 1)
	if got := out.At(2, 2); math.Abs(got-0.1) > eps {
		t.Errorf("smoothed spike = %g, want 0.1", got)
	}
	if got := out.At(1, 1); math.Abs(got-0.1) > eps {
		t.Errorf("neighbour of spike = %g, want 0.1", got)
	}
	if spike.At(2, 2) != 0.9 {
		t.Error("smooth mutated its input")
	}
}

func TestResetIdempotent(t *testing.T) {
	g := heightmap.MustNew(6)
	g.Fill(0.7)
	once := Reset(g)
	twice := Reset(once)
	if !once.Equal(twice, 0) || once.Max() != 0 || once.Min() != 0 {
		t.Error("reset should give the same all-zero grid every time")
	}
}

func TestSplatWeights(t *testing.T) {
	g := heightmap.MustNew(4)
	g.Fill(0.5)
	flat := noise.Func(func(x, y float64) float64 { return 0 })

	everywhere := SplatLayer{MinHeight: 0, MaxHeight: 1, MinSlope: 0, MaxSlope: 90}
	nowhere := SplatLayer{MinHeight: 0.8, MaxHeight: 0.9, MinSlope: 0, MaxSlope: 90}

	w := SplatWeights(g, []SplatLayer{everywhere, nowhere}, flat)
	for i, cell := range w {
		if cell[0] != 1 || cell[1] != 0 {
			t.Fatalf("cell %d weights = %v, want [1 0]", i, cell)
		}
	}

	w = SplatWeights(g, []SplatLayer{everywhere, everywhere}, flat)
	if w[0][0] != 0.5 || w[0][1] != 0.5 {
		t.Errorf("overlapping layers = %v, want [0.5 0.5]", w[0])
	}

	w = SplatWeights(g, []SplatLayer{nowhere}, flat)
	if w[5][0] != 0 {
		t.Errorf("uncovered cell weight = %v, want 0", w[5])
	}
}

func TestSteepness(t *testing.T) {
	flat := heightmap.MustNew(5)
	if s := Steepness(flat, 2, 2); s != 0 {
		t.Errorf("flat steepness = %g", s)
	}
	// Height rises by the full range across the tile: a 45° ramp.
	ramp := heightmap.MustNew(5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			ramp.Set(x, y, float64(x)/4)
		}
	}
	if s := Steepness(ramp, 2, 2); math.Abs(s-45) > 1e-6 {
		t.Errorf("ramp steepness = %g, want 45", s)
	}
}

func TestValidate(t *testing.T) {
	bad := DefaultNoiseLayer()
	bad.Octaves = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("octaves 0: %v", err)
	}
	for name, mutate := range map[string]func(l *NoiseLayer){
		"x scale": func(l *NoiseLayer) { l.XScale = 0 },
		"y scale": func(l *NoiseLayer) { l.YScale = -1 },
		"z scale": func(l *NoiseLayer) { l.ZScale = 0 },
	} {
		l := DefaultNoiseLayer()
		mutate(&l)
		if err := l.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: %v", name, err)
		}
	}
	if err := DefaultNoiseLayer().Validate(); err != nil {
		t.Errorf("default layer: %v", err)
	}

	peaks := DefaultRadialPeakParams()
	peaks.HeightMin, peaks.HeightMax = 0.9, 0.1
	if err := peaks.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("inverted height range: %v", err)
	}
	peaks = DefaultRadialPeakParams()
	peaks.Amplitude = 1.5
	if err := peaks.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("amplitude 1.5: %v", err)
	}

	disp := DefaultDisplacementParams()
	disp.DampenerPower = 0
	if err := disp.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("dampener 0: %v", err)
	}
}

func BenchmarkPerlin(b *testing.B) {
	gen := newTestGenerator(1)
	base := heightmap.MustNew(129)
	layers := []NoiseLayer{DefaultNoiseLayer()}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.Perlin(base, layers, true, false)
	}
}
