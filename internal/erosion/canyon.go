package erosion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/terrain"
)

const (
	// maxEndpointAttempts bounds the search for a far enough end point.
	maxEndpointAttempts = 1000
	// minWalkSteps is added to the walk cap so tiny grids still get a path.
	minWalkSteps = 16
)

// canyon digs a trench along a jittered walk. Every dig point sinks to a pit
// Strength below its current height; cells within the bank radius are pulled
// toward the pit by a steep falloff plus angular noise, and never rise.
func (e *Engine) canyon(g *heightmap.Grid, p Canyon) {
	res := g.Resolution()
	digRange := int(p.BankSize * float64(res))
	if digRange < 1 {
		digRange = 1
	}

	for _, dig := range e.canyonPath(res, p) {
		pit := heightmap.Clamp01(g.At(dig.X, dig.Y) - p.Strength)
		center := mgl64.Vec2{float64(dig.X), float64(dig.Y)}

		x0, x1 := max(dig.X-digRange, 0), min(dig.X+digRange, res)
		y0, y1 := max(dig.Y-digRange, 0), min(dig.Y+digRange, res)
		for x := x0; x < x1; x++ {
			for y := y0; y < y1; y++ {
				cell := mgl64.Vec2{float64(x), float64(y)}
				toDig := center.Sub(cell)
				// Degrees in [0, 360]; walking around the pit varies the bank noise.
				angle := 180 - math.Atan2(toDig.Y(), toDig.X())*180/math.Pi
				d := toDig.Len() / float64(digRange)

				f := terrain.SteepFalloff(d) + e.kernel.Eval(angle, 0)*p.BankJiggle
				h := g.At(x, y)
				target := heightmap.Lerp(h, pit, heightmap.Clamp01(f))
				g.Set(x, y, math.Min(h, target))
			}
		}
	}
}

// canyonPath picks two endpoints at least MinDistance·res apart and walks from
// one toward the other in steps of Step·res, each step's direction nudged by
// up to DirectionJiggle on both axes. Points are rounded and clamped to the grid.
func (e *Engine) canyonPath(res int, p Canyon) []heightmap.Point {
	randomCell := func() mgl64.Vec2 {
		return mgl64.Vec2{float64(e.rng.Intn(res)), float64(e.rng.Intn(res))}
	}

	start := randomCell()
	end := randomCell()
	minDist := p.MinDistance * float64(res)
	best, bestDist := end, end.Sub(start).Len()
	for attempt := 0; bestDist < minDist && attempt < maxEndpointAttempts; attempt++ {
		// The grid may be too small to ever satisfy minDist; keep the farthest seen.
		cand := randomCell()
		if d := cand.Sub(start).Len(); d > bestDist {
			best, bestDist = cand, d
		}
	}
	end = best

	stepLen := p.Step * float64(res)
	maxSteps := int(4*math.Sqrt2*float64(res)/stepLen) + minWalkSteps

	path := []mgl64.Vec2{start}
	cur := start
	for steps := 0; end.Sub(cur).Len() > stepLen && steps < maxSteps; steps++ {
		jiggle := mgl64.Vec2{
			entropy.Range(e.rng, -p.DirectionJiggle, p.DirectionJiggle),
			entropy.Range(e.rng, -p.DirectionJiggle, p.DirectionJiggle),
		}
		dir := end.Sub(cur).Normalize().Add(jiggle)
		if dir.Len() == 0 {
			continue
		}
		cur = cur.Add(dir.Normalize().Mul(stepLen))
		path = append(path, cur)
	}
	path = append(path, end)

	points := make([]heightmap.Point, len(path))
	for i, v := range path {
		points[i] = heightmap.Point{
			X: heightmap.Clamp(int(math.Round(v.X())), 0, res-1),
			Y: heightmap.Clamp(int(math.Round(v.Y())), 0, res-1),
		}
	}
	return points
}
