package erosion

import "github.com/talgya/terrasmith/internal/heightmap"

// wind sweeps a window twice the grid's size in every direction so dunes
// enter from outside the tile. Each column position digs Strength from one
// cell and piles it PileDistance rows further on; noise jitters the row so
// the ridges meander. Pairs with either end off the grid move nothing.
func (e *Engine) wind(g *heightmap.Grid, p Wind) {
	res := g.Resolution()
	for y := -2 * res; y <= 2*res; y++ {
		for x := -2 * res; x <= 2*res; x++ {
			jitter := int(e.kernel.Eval(float64(x)*p.Scale, float64(y)*p.Scale) * p.JitterHeight)
			digY := y + jitter
			pileY := digY + p.PileDistance
			if !g.InBounds(x, digY) || !g.InBounds(x, pileY) {
				continue
			}
			g.Add(x, digY, -p.Strength)
			g.Add(x, pileY, p.Strength)
		}
	}
}
