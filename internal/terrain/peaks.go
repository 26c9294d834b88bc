package terrain

import (
	"log/slog"
	"math"

	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
)

// Peak is one radial peak: apex position, apex height, radius scale, and falloff exponent.
type Peak struct {
	X, Y       int
	Height     float64
	Scale      float64
	Smoothness float64
}

// RadialFalloff is the peak and blend kernel: cos(d^steepness·π)·amplitude + (1−amplitude),
// with d clamped to [0, 1]. It is 1 at d = 0 and 1−2·amplitude at d = 1.
func RadialFalloff(d, steepness, amplitude float64) float64 {
	d = heightmap.Clamp01(d)
	return math.Cos(math.Pow(d, steepness)*math.Pi)*amplitude + (1 - amplitude)
}

// SteepFalloff is RadialFalloff with steepness 0.5 and amplitude 0.5: a wide flat
// bottom that drops sharply near d = 1. Canyon banks use it.
func SteepFalloff(d float64) float64 {
	return RadialFalloff(d, 0.5, 0.5)
}

// RadialPeaks scatters params.PeakCount peaks over base (or a zero grid when
// reset). Each peak's height, scale, smoothness, and apex are drawn from the
// generator's source. Cells keep the highest value any peak offers them.
// If at least one peak lands, the map is moved down so its lowest point is 0.
func (g *Generator) RadialPeaks(base *heightmap.Grid, params RadialPeakParams, reset bool) *heightmap.Grid {
	hm := startGrid(base, reset)
	res := hm.Resolution()

	placed := 0
	for i := 0; i < params.PeakCount; i++ {
		p := Peak{
			Height:     entropy.Range(g.rng, params.HeightMin, params.HeightMax),
			Scale:      entropy.Range(g.rng, params.ScaleMin, params.ScaleMax),
			Smoothness: entropy.Range(g.rng, params.SmoothnessMin, params.SmoothnessMax),
			X:          g.rng.Intn(res),
			Y:          g.rng.Intn(res),
		}
		if PlacePeak(hm, p, params.Amplitude) {
			placed++
		}
	}

	slog.Debug("radial peaks placed", "requested", params.PeakCount, "placed", placed)
	if placed == 0 {
		return hm
	}

	// Later peaks can lift cells an earlier pass saw as the minimum, so the floor
	// comes from the finished map.
	hm.Shift(-hm.Min())
	return hm
}

// PlacePeak raises hm around p in place and reports whether the peak landed.
// A peak is rejected, touching nothing, when its apex lies outside the grid or
// the terrain at the apex is already at least p.Height. Otherwise the apex is
// set to p.Height and every cell within normalised distance 1 takes
// max(current, p.Height·falloff). Distance is planar distance to the apex over
// the grid diagonal, times p.Scale.
func PlacePeak(hm *heightmap.Grid, p Peak, amplitude float64) bool {
	if !hm.InBounds(p.X, p.Y) {
		return false
	}
	if hm.At(p.X, p.Y) >= p.Height {
		return false
	}
	hm.Set(p.X, p.Y, p.Height)

	res := hm.Resolution()
	maxDistance := math.Hypot(float64(res), float64(res))

	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			if x == p.X && y == p.Y {
				continue
			}
			d := math.Hypot(float64(x-p.X), float64(y-p.Y)) / maxDistance * p.Scale
			if d > 1 {
				continue
			}
			h := p.Height * RadialFalloff(d, p.Smoothness, amplitude)
			if h > hm.At(x, y) {
				hm.Set(x, y, h)
			}
		}
	}
	return true
}
