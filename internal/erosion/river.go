package erosion

import (
	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
)

// river drops water at random springs and lets each droplet run downhill for
// up to SpringsPerRiver hops. A droplet starts carrying Strength and sheds
// Solubility per hop; what it carries into a cell is recorded in an erosion
// map that is subtracted from the terrain once every droplet has run.
func (e *Engine) river(g *heightmap.Grid, p River) {
	res := g.Resolution()
	carved := heightmap.MustNew(res)

	for d := 0; d < p.Droplets; d++ {
		cur := heightmap.Point{X: e.rng.Intn(res), Y: e.rng.Intn(res)}
		carved.Set(cur.X, cur.Y, p.Strength)
		visited := map[heightmap.Point]bool{cur: true}

		for hop := 0; hop < p.SpringsPerRiver; hop++ {
			carry := carved.At(cur.X, cur.Y)
			if carry <= 0 {
				break
			}
			next, ok := e.downhill(g, cur, visited)
			if !ok {
				// Pooled water spends itself filling the dead end.
				carved.Add(cur.X, cur.Y, -p.Solubility)
				break
			}
			carved.Set(next.X, next.Y, carry-p.Solubility)
			visited[next] = true
			cur = next
		}
	}

	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			if c := carved.At(x, y); c > 0 {
				g.Add(x, y, -c)
			}
		}
	}
}

// downhill picks a random unvisited neighbour strictly lower than cur.
func (e *Engine) downhill(g *heightmap.Grid, cur heightmap.Point, visited map[heightmap.Point]bool) (heightmap.Point, bool) {
	ns := g.Neighbours(cur.X, cur.Y, 1, 1)
	entropy.Shuffle(e.rng, len(ns), func(i, j int) { ns[i], ns[j] = ns[j], ns[i] })

	h := g.At(cur.X, cur.Y)
	for _, n := range ns {
		if visited[n] {
			continue
		}
		if g.At(n.X, n.Y) < h {
			return n, true
		}
	}
	return heightmap.Point{}, false
}
