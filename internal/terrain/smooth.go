package terrain

import "github.com/talgya/terrasmith/internal/heightmap"

// Smooth is a box blur: every cell becomes the mean of itself and its distinct
// clamped neighbours within radius. Reads come from g only, so the result does
// not depend on scan order. radius < 1 returns a copy.
func Smooth(g *heightmap.Grid, radius int) *heightmap.Grid {
	out := g.Clone()
	if radius < 1 {
		return out
	}
	res := g.Resolution()
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			sum := g.At(x, y)
			neighbours := g.Neighbours(x, y, radius, 1)
			for _, n := range neighbours {
				sum += g.At(n.X, n.Y)
			}
			out.Set(x, y, sum/float64(len(neighbours)+1))
		}
	}
	return out
}
