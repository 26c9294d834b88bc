package terrain

import (
	"math"

	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
)

// MidpointDisplacement runs diamond-square on a zero grid the size of base and
// adds the result, scaled by params.HeightScale, onto base (or a zero grid when
// reset). Resolutions of the form 2^n+1 subdivide exactly; other sizes still
// work, with sub-steps that would read or write outside the grid skipped.
//
// The loop:
//  1. diamond: each square's centre = mean of its corners + perturbation
//  2. square: each edge midpoint = mean of its two corners, the centre, and the
//     neighbouring square's centre + perturbation
//  3. halve the square size and multiply the perturbation range by the dampener
func (g *Generator) MidpointDisplacement(base *heightmap.Grid, params DisplacementParams, reset bool) *heightmap.Grid {
	res := base.Resolution()
	gen := heightmap.MustNew(res)

	width := res - 1
	squareSize := width
	heightMin := params.HeightMin
	heightMax := params.HeightMax
	dampener := math.Pow(params.DampenerPower, -params.Roughness)

	perturb := func() float64 {
		return entropy.Range(g.rng, heightMin, heightMax)
	}

	for squareSize > 0 {
		half := squareSize / 2

		// Diamond step.
		for x := 0; x < width; x += squareSize {
			for y := 0; y < width; y += squareSize {
				cx, cy := x+squareSize, y+squareSize
				mx, my := x+half, y+half
				if !gen.InBounds(cx, cy) {
					continue
				}
				avg := (gen.At(x, y) + gen.At(cx, y) + gen.At(x, cy) + gen.At(cx, cy)) / 4
				gen.Set(mx, my, avg+perturb())
			}
		}

		// Square step.
		for x := 0; x < width; x += squareSize {
			for y := 0; y < width; y += squareSize {
				cx, cy := x+squareSize, y+squareSize
				mx, my := x+half, y+half

				// Bottom edge.
				setMean(gen, perturb, mx, y, [4][2]int{{mx, my}, {x, y}, {mx, my - squareSize}, {cx, y}})
				// Top edge.
				setMean(gen, perturb, mx, cy, [4][2]int{{x, cy}, {mx, my}, {cx, cy}, {mx, my + squareSize}})
				// Left edge.
				setMean(gen, perturb, x, my, [4][2]int{{x, y}, {mx - squareSize, my}, {x, cy}, {mx, my}})
				// Right edge.
				setMean(gen, perturb, cx, my, [4][2]int{{mx, y}, {mx, my}, {cx, cy}, {mx + squareSize, my}})
			}
		}

		squareSize /= 2
		heightMin *= dampener
		heightMax *= dampener
	}

	out := startGrid(base, reset)
	gen.Scale(params.HeightScale)
	// Same resolution by construction.
	_ = out.AddGrid(gen)
	return out
}

// setMean writes the mean of the four source cells plus a perturbation into
// (x, y). If any cell involved lies outside the grid the sub-step is skipped
// and no randomness is consumed.
func setMean(g *heightmap.Grid, perturb func() float64, x, y int, src [4][2]int) {
	if !g.InBounds(x, y) {
		return
	}
	sum := 0.0
	for _, p := range src {
		if !g.InBounds(p[0], p[1]) {
			return
		}
		sum += g.At(p[0], p[1])
	}
	g.Set(x, y, sum/4+perturb())
}
