// Package heightmap provides the square elevation grid shared by every
// generation, erosion, and blending stage.
// Cells are addressed as (x, y): x is the column (world X), y is the row (world Z).
package heightmap

import (
	"errors"
	"fmt"
	"math"
)

// MinResolution is the smallest side length a grid may have.
const MinResolution = 2

// ErrResolution is returned when a grid is requested with an unusable side length.
var ErrResolution = errors.New("heightmap: resolution must be >= 2")

// Grid is a dense square array of elevations, nominally in [0, 1].
// Values may leave that range mid-pipeline; Clamp01 is the presentation step.
type Grid struct {
	res   int
	cells []float64 // row-major: cells[y*res+x]
}

// Point is an integer cell coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// New creates a zero-filled grid with the given side length.
func New(resolution int) (*Grid, error) {
	if resolution < MinResolution {
		return nil, fmt.Errorf("%w (got %d)", ErrResolution, resolution)
	}
	return &Grid{
		res:   resolution,
		cells: make([]float64, resolution*resolution),
	}, nil
}

// MustNew is New for resolutions known to be valid. It panics otherwise.
func MustNew(resolution int) *Grid {
	g, err := New(resolution)
	if err != nil {
		panic(err)
	}
	return g
}

// FromRows builds a grid from rows[y][x]. Every row must have len(rows) entries.
func FromRows(rows [][]float64) (*Grid, error) {
	g, err := New(len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != g.res {
			return nil, fmt.Errorf("heightmap: row %d has %d cells, want %d", y, len(row), g.res)
		}
		copy(g.cells[y*g.res:(y+1)*g.res], row)
	}
	return g, nil
}

// FromValues wraps a row-major slice of resolution² values. The slice is copied.
func FromValues(resolution int, values []float64) (*Grid, error) {
	g, err := New(resolution)
	if err != nil {
		return nil, err
	}
	if len(values) != len(g.cells) {
		return nil, fmt.Errorf("heightmap: %d values for resolution %d, want %d", len(values), resolution, len(g.cells))
	}
	copy(g.cells, values)
	return g, nil
}

// Resolution returns the side length.
func (g *Grid) Resolution() int {
	return g.res
}

// At returns the height at (x, y). Callers keep coordinates in range.
func (g *Grid) At(x, y int) float64 {
	return g.cells[y*g.res+x]
}

// Set assigns the height at (x, y).
func (g *Grid) Set(x, y int, v float64) {
	g.cells[y*g.res+x] = v
}

// Add adds delta to the height at (x, y).
func (g *Grid) Add(x, y int, delta float64) {
	g.cells[y*g.res+x] += delta
}

// InBounds reports whether (x, y) addresses a cell.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.res && y < g.res
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	c := &Grid{res: g.res, cells: make([]float64, len(g.cells))}
	copy(c.cells, g.cells)
	return c
}

// CopyFrom overwrites g with the contents of src. Resolutions must match.
func (g *Grid) CopyFrom(src *Grid) error {
	if src.res != g.res {
		return fmt.Errorf("heightmap: copy resolution %d into %d", src.res, g.res)
	}
	copy(g.cells, src.cells)
	return nil
}

// Values returns the backing row-major slice. Mutating it mutates the grid.
func (g *Grid) Values() []float64 {
	return g.cells
}

// Rows returns a row-major copy as rows[y][x].
func (g *Grid) Rows() [][]float64 {
	rows := make([][]float64, g.res)
	for y := range rows {
		rows[y] = make([]float64, g.res)
		copy(rows[y], g.cells[y*g.res:(y+1)*g.res])
	}
	return rows
}

// Row returns a copy of row y.
func (g *Grid) Row(y int) []float64 {
	row := make([]float64, g.res)
	copy(row, g.cells[y*g.res:(y+1)*g.res])
	return row
}

// SetRow overwrites row y with values.
func (g *Grid) SetRow(y int, values []float64) {
	copy(g.cells[y*g.res:(y+1)*g.res], values)
}

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.cells {
		g.cells[i] = v
	}
}

// Shift adds delta to every cell.
func (g *Grid) Shift(delta float64) {
	for i := range g.cells {
		g.cells[i] += delta
	}
}

// Scale multiplies every cell by f.
func (g *Grid) Scale(f float64) {
	for i := range g.cells {
		g.cells[i] *= f
	}
}

// AddGrid adds other cell by cell. Resolutions must match.
func (g *Grid) AddGrid(other *Grid) error {
	if other.res != g.res {
		return fmt.Errorf("heightmap: add resolution %d into %d", other.res, g.res)
	}
	for i, v := range other.cells {
		g.cells[i] += v
	}
	return nil
}

// Clamp01 clamps every cell into [0, 1].
func (g *Grid) Clamp01() {
	for i, v := range g.cells {
		g.cells[i] = Clamp(v, 0, 1)
	}
}

// Min returns the lowest height.
func (g *Grid) Min() float64 {
	m := math.Inf(1)
	for _, v := range g.cells {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the highest height.
func (g *Grid) Max() float64 {
	m := math.Inf(-1)
	for _, v := range g.cells {
		if v > m {
			m = v
		}
	}
	return m
}

// Mean returns the average height.
func (g *Grid) Mean() float64 {
	sum := 0.0
	for _, v := range g.cells {
		sum += v
	}
	return sum / float64(len(g.cells))
}

// Stats summarises a grid for logs and the API.
type Stats struct {
	Resolution int     `json:"resolution"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
}

// Stats returns min, max, and mean in one value.
func (g *Grid) Stats() Stats {
	return Stats{Resolution: g.res, Min: g.Min(), Max: g.Max(), Mean: g.Mean()}
}

// Equal reports whether both grids have the same resolution and every cell
// differs by at most eps.
func (g *Grid) Equal(other *Grid, eps float64) bool {
	if g.res != other.res {
		return false
	}
	for i, v := range g.cells {
		if math.Abs(v-other.cells[i]) > eps {
			return false
		}
	}
	return true
}

// String returns a short summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(res=%d, min=%.4f, max=%.4f)", g.res, g.Min(), g.Max())
}
