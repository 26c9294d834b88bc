package erosion

import "github.com/talgya/terrasmith/internal/heightmap"

func (e *Engine) thermal(g *heightmap.Grid, p Thermal) {
	res := g.Resolution()
	for i := 0; i < p.Iterations; i++ {
		for x := 0; x < res; x++ {
			for y := 0; y < res; y++ {
				thermalStep(g, x, y, p.Strength, p.Threshold)
			}
		}
	}
}

// thermalStep lets the cell at (x, y) slump onto each lower neighbour two
// cells away. The neighbour gains strength·diff; the cell loses the same
// amount but never drops below the midpoint of the pair, so a slope can
// flatten but not invert.
func thermalStep(g *heightmap.Grid, x, y int, strength, threshold float64) {
	for _, n := range g.Neighbours(x, y, 1, 2) {
		h := g.At(x, y)
		diff := h - g.At(n.X, n.Y)
		if diff <= threshold {
			continue
		}

		transport := strength * diff
		next := h - transport
		if lowest := h - diff/2; next < lowest {
			next = lowest
		} else if next > 1 {
			next = 1
		}
		g.Set(x, y, next)
		g.Add(n.X, n.Y, transport)
	}
}
