// Package blend removes seams between terrain tiles that share an edge.
// Tiles are laid out on the world X/Z plane; a tile's grid rows run along Z.
package blend

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/terrain"
)

// Epsilon is the tolerance when deciding whether two tiles touch.
const Epsilon = 1e-6

// ErrInvalidParams is wrapped by blend configuration errors.
var ErrInvalidParams = errors.New("blend: invalid params")

// Tile is a terrain tile placed in the world.
type Tile struct {
	Name     string
	Position mgl64.Vec2 // World X and Z of the tile origin
	Size     float64    // World side length
	Grid     *heightmap.Grid
}

// Edge says which side of the first tile the second one touches.
type Edge uint8

const (
	EdgeTop Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeRight
	EdgeNone
)

var edgeNames = [...]string{"top", "bottom", "left", "right", "none"}

func (e Edge) String() string {
	if int(e) < len(edgeNames) {
		return edgeNames[e]
	}
	return "unknown"
}

// Params controls the blend falloff. Amplitude grows by StepMultiplier after
// every pass, so later passes concentrate on the seam.
type Params struct {
	Steepness            float64 `yaml:"steepness" json:"steepness"`
	Amplitude            float64 `yaml:"amplitude" json:"amplitude"`
	BlendScale           float64 `yaml:"blend_scale" json:"blend_scale"`
	ContactEdgeInfluence float64 `yaml:"contact_edge_influence" json:"contact_edge_influence"`
	StepMultiplier       float64 `yaml:"step_multiplier" json:"step_multiplier"`
	MaxStep              int     `yaml:"max_step" json:"max_step"`
}

// DefaultParams returns the stock blend settings.
func DefaultParams() Params {
	return Params{
		Steepness:            0.55,
		Amplitude:            1.2,
		BlendScale:           0.2,
		ContactEdgeInfluence: 0.4,
		StepMultiplier:       1.5,
		MaxStep:              2,
	}
}

// Validate checks the params for values the blend cannot use.
func (p Params) Validate() error {
	if p.BlendScale <= 0 {
		return fmt.Errorf("%w: blend scale must be > 0", ErrInvalidParams)
	}
	if p.MaxStep < 0 {
		return fmt.Errorf("%w: max step must be >= 0", ErrInvalidParams)
	}
	if p.Steepness < 0 || p.StepMultiplier < 0 || p.ContactEdgeInfluence < 0 {
		return fmt.Errorf("%w: steepness, step multiplier and contact edge influence must be >= 0", ErrInvalidParams)
	}
	return nil
}

// Adjacency reports which edge of a the tile b touches. Tiles touch when
// their origins are exactly one tile size apart; diagonal or distant tiles
// give EdgeNone.
func Adjacency(a, b Tile) Edge {
	delta := b.Position.Sub(a.Position)
	if math.Abs(delta.Len()-a.Size) > Epsilon {
		return EdgeNone
	}
	switch {
	case delta.Y() > 0:
		return EdgeTop
	case delta.Y() < 0:
		return EdgeBottom
	case delta.X() < 0:
		return EdgeLeft
	case delta.X() > 0:
		return EdgeRight
	}
	return EdgeNone
}

// Blend runs p.MaxStep passes over every pair of touching tiles, rewriting
// their grids in place so each shared edge holds the same heights on both
// sides and the terrain eases into it.
func Blend(tiles []Tile, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(tiles) == 0 {
		return nil
	}
	for _, t := range tiles {
		if t.Grid == nil {
			return fmt.Errorf("%w: tile %q has no grid", ErrInvalidParams, t.Name)
		}
		if t.Grid.Resolution() != tiles[0].Grid.Resolution() {
			return fmt.Errorf("%w: tile %q resolution %d differs from %q resolution %d",
				ErrInvalidParams, t.Name, t.Grid.Resolution(), tiles[0].Name, tiles[0].Grid.Resolution())
		}
	}

	amplitude := p.Amplitude
	for step := 0; step < p.MaxStep; step++ {
		seams := 0
		for i := 0; i < len(tiles); i++ {
			for j := i + 1; j < len(tiles); j++ {
				edge := Adjacency(tiles[i], tiles[j])
				if edge == EdgeNone {
					continue
				}
				blendPair(tiles[i].Grid, tiles[j].Grid, edge, p, amplitude)
				seams++
			}
		}
		slog.Debug("blend pass", "step", step, "seams", seams, "amplitude", amplitude)
		amplitude *= p.StepMultiplier
	}
	return nil
}

// blendPair turns both grids so the contact runs along bottom's last row and
// top's first row, blends, and turns them back.
func blendPair(a, b *heightmap.Grid, edge Edge, p Params, amplitude float64) {
	var bottom, top *heightmap.Grid
	switch edge {
	case EdgeTop:
		bottom, top = a.Clone(), b.Clone()
	case EdgeBottom:
		bottom, top = b.Clone(), a.Clone()
	case EdgeLeft:
		bottom, top = a.RotateAntiClockwise(), b.RotateAntiClockwise()
	case EdgeRight:
		bottom, top = b.RotateAntiClockwise(), a.RotateAntiClockwise()
	default:
		return
	}

	blendRows(bottom, top, p, amplitude)

	switch edge {
	case EdgeTop:
		a.CopyFrom(bottom)
		b.CopyFrom(top)
	case EdgeBottom:
		a.CopyFrom(top)
		b.CopyFrom(bottom)
	case EdgeLeft:
		a.CopyFrom(bottom.RotateClockwise())
		b.CopyFrom(top.RotateClockwise())
	case EdgeRight:
		a.CopyFrom(top.RotateClockwise())
		b.CopyFrom(bottom.RotateClockwise())
	}
}

// blendRows blends bottom's last row into top's first row. Each map is pulled
// halfway toward the other map mirrored across the seam, then toward the
// averaged contact row, both weighted by a falloff of the distance to the
// seam. Finally the contact rows are set to the average on both sides.
func blendRows(bottom, top *heightmap.Grid, p Params, amplitude float64) {
	res := bottom.Resolution()
	mirroredBottom := bottom.FlipRows()
	mirroredTop := top.FlipRows()

	contact := make([]float64, res)
	for x := 0; x < res; x++ {
		contact[x] = (bottom.At(x, res-1) + top.At(x, 0)) / 2
	}

	span := float64(res) * p.BlendScale
	factor := func(rowsFromSeam int) float64 {
		d := float64(rowsFromSeam) / span
		return heightmap.Clamp01(terrain.RadialFalloff(d, p.Steepness, amplitude))
	}

	for y := 0; y < res; y++ {
		f := factor(res - y)
		for x := 0; x < res; x++ {
			h := heightmap.Lerp(bottom.At(x, y), mirroredTop.At(x, y), 0.5*f)
			bottom.Set(x, y, heightmap.Lerp(h, contact[x], p.ContactEdgeInfluence*f))
		}
	}
	for y := 0; y < res; y++ {
		f := factor(y)
		for x := 0; x < res; x++ {
			h := heightmap.Lerp(top.At(x, y), mirroredBottom.At(x, y), 0.5*f)
			top.Set(x, y, heightmap.Lerp(h, contact[x], p.ContactEdgeInfluence*f))
		}
	}

	bottom.SetRow(res-1, contact)
	top.SetRow(0, contact)
}
