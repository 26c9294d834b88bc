// Package terrain synthesises heightmaps: additive fBM layers, radial peaks,
// diamond-square displacement, smoothing, and texture splat weights.
// Generation stages never mutate their input; each returns a fresh grid.
package terrain

import (
	"log/slog"
	"math"

	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
)

// Generator carries the randomness and noise kernel a generation stage draws on.
type Generator struct {
	rng    entropy.Source
	kernel noise.Kernel
}

// NewGenerator creates a Generator over the given random source and kernel.
func NewGenerator(rng entropy.Source, kernel noise.Kernel) *Generator {
	return &Generator{rng: rng, kernel: kernel}
}

// Kernel returns the generator's noise kernel.
func (g *Generator) Kernel() noise.Kernel {
	return g.kernel
}

// startGrid returns a zero grid of base's resolution when reset is set,
// otherwise a copy of base.
func startGrid(base *heightmap.Grid, reset bool) *heightmap.Grid {
	if reset {
		return heightmap.MustNew(base.Resolution())
	}
	return base.Clone()
}

// Perlin adds every layer's fBM field onto base (or a zero grid when reset)
// and then moves the whole map down so its lowest point sits at exactly 0.
// With randomizeOffsets, each layer draws a fresh offset pair in
// [0, MaxPerlinOffset) instead of using its configured one.
func (g *Generator) Perlin(base *heightmap.Grid, layers []NoiseLayer, reset, randomizeOffsets bool) *heightmap.Grid {
	hm := startGrid(base, reset)
	if len(layers) == 0 {
		return hm
	}
	res := hm.Resolution()

	// Heights only settle after the last layer, so the floor is taken there.
	minHeight := math.Inf(1)
	for i, layer := range layers {
		ox, oy := layer.XOffset, layer.YOffset
		if randomizeOffsets {
			ox = g.rng.Intn(MaxPerlinOffset)
			oy = g.rng.Intn(MaxPerlinOffset)
		}
		last := i == len(layers)-1

		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				h := noise.FBM(g.kernel,
					float64(x+ox)*layer.XScale,
					float64(y+oy)*layer.YScale,
					layer.Octaves, layer.Persistence, layer.Lacunarity) * layer.ZScale
				hm.Add(x, y, h)

				if last && hm.At(x, y) < minHeight {
					minHeight = hm.At(x, y)
				}
			}
		}
		slog.Debug("perlin layer applied", "layer", i, "offset_x", ox, "offset_y", oy)
	}

	// Move it down so the lowest point meets the ground.
	hm.Shift(-minHeight)
	return hm
}

// Reset returns a zero grid with g's resolution.
func Reset(g *heightmap.Grid) *heightmap.Grid {
	return heightmap.MustNew(g.Resolution())
}
