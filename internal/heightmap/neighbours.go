package heightmap

import "golang.org/x/exp/constraints"

// Neighbours enumerates the cells around (x, y) at offsets -radius..radius,
// each multiplied by step. The (0, 0) offset is excluded. Coordinates are
// clamped to the grid and a clamped position is listed once, in first-seen
// order, so edge cells get fewer neighbours. A clamped neighbour may coincide
// with (x, y) itself.
func (g *Grid) Neighbours(x, y, radius, step int) []Point {
	side := 2*radius + 1
	out := make([]Point, 0, side*side-1)
	seen := make(map[Point]struct{}, side*side)

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			p := Point{
				X: Clamp(x+dx*step, 0, g.res-1),
				Y: Clamp(y+dy*step, 0, g.res-1),
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01[T constraints.Float](v T) T {
	return Clamp(v, 0, 1)
}

// Lerp interpolates from a to b by t, with t clamped to [0, 1].
func Lerp[T constraints.Float](a, b, t T) T {
	t = Clamp01(t)
	return a + (b-a)*t
}
