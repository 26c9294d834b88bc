package heightmap

// Rotations and flips operate on rows: r is the row (y), c the column (x).
// Each returns a new grid and leaves the receiver untouched.

// RotateClockwise returns the grid turned 90° clockwise:
// the left column becomes the top row.
func (g *Grid) RotateClockwise() *Grid {
	n := g.res
	out := &Grid{res: n, cells: make([]float64, len(g.cells))}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out.cells[r*n+c] = g.cells[(n-1-c)*n+r]
		}
	}
	return out
}

// RotateAntiClockwise returns the grid turned 90° anticlockwise:
// the right column becomes the top row.
func (g *Grid) RotateAntiClockwise() *Grid {
	n := g.res
	out := &Grid{res: n, cells: make([]float64, len(g.cells))}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out.cells[r*n+c] = g.cells[c*n+(n-1-r)]
		}
	}
	return out
}

// Rotate180 returns the grid turned half a turn.
func (g *Grid) Rotate180() *Grid {
	n := len(g.cells)
	out := &Grid{res: g.res, cells: make([]float64, n)}
	for i, v := range g.cells {
		out.cells[n-1-i] = v
	}
	return out
}

// FlipRows returns the grid mirrored top to bottom: row r becomes row n-1-r.
func (g *Grid) FlipRows() *Grid {
	n := g.res
	out := &Grid{res: n, cells: make([]float64, len(g.cells))}
	for r := 0; r < n; r++ {
		copy(out.cells[r*n:(r+1)*n], g.cells[(n-1-r)*n:(n-r)*n])
	}
	return out
}
