package blend

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/terrasmith/internal/heightmap"
)

const eps = 1e-9

func randomTile(name string, x, z float64, res int, seed int64) Tile {
	rng := rand.New(rand.NewSource(seed))
	g := heightmap.MustNew(res)
	for i := range g.Values() {
		g.Values()[i] = rng.Float64()
	}
	return Tile{Name: name, Position: mgl64.Vec2{x, z}, Size: 100, Grid: g}
}

func TestAdjacency(t *testing.T) {
	a := Tile{Position: mgl64.Vec2{0, 0}, Size: 100}
	cases := []struct {
		pos  mgl64.Vec2
		want Edge
	}{
		{mgl64.Vec2{0, 100}, EdgeTop},
		{mgl64.Vec2{0, -100}, EdgeBottom},
		{mgl64.Vec2{-100, 0}, EdgeLeft},
		{mgl64.Vec2{100, 0}, EdgeRight},
		{mgl64.Vec2{100, 100}, EdgeNone},
		{mgl64.Vec2{0, 200}, EdgeNone},
		{mgl64.Vec2{0, 0}, EdgeNone},
		{mgl64.Vec2{0, 100.5}, EdgeNone},
	}
	for _, c := range cases {
		b := Tile{Position: c.pos, Size: 100}
		if got := Adjacency(a, b); got != c.want {
			t.Errorf("Adjacency to %v = %v, want %v", c.pos, got, c.want)
		}
	}
}

func TestBlendSeamContinuityVertical(t *testing.T) {
	const res = 17
	a := randomTile("a", 0, 0, res, 1)
	b := randomTile("b", 0, 100, res, 2)

	if err := Blend([]Tile{a, b}, DefaultParams()); err != nil {
		t.Fatal(err)
	}
	for x := 0; x < res; x++ {
		if got, want := a.Grid.At(x, res-1), b.Grid.At(x, 0); math.Abs(got-want) > eps {
			t.Errorf("column %d: seam %g vs %g", x, got, want)
		}
	}
}

func TestBlendSeamContinuityHorizontal(t *testing.T) {
	const res = 17
	a := randomTile("a", 0, 0, res, 3)
	left := randomTile("left", -100, 0, res, 4)

	if err := Blend([]Tile{a, left}, DefaultParams()); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < res; y++ {
		if got, want := a.Grid.At(0, y), left.Grid.At(res-1, y); math.Abs(got-want) > eps {
			t.Errorf("row %d: seam %g vs %g", y, got, want)
		}
	}
}

func TestBlendSeamIsAverage(t *testing.T) {
	const res = 9
	a := Tile{Name: "a", Size: 100, Grid: heightmap.MustNew(res)}
	b := Tile{Name: "b", Position: mgl64.Vec2{100, 0}, Size: 100, Grid: heightmap.MustNew(res)}
	b.Grid.Fill(1)

	p := DefaultParams()
	p.MaxStep = 1
	if err := Blend([]Tile{a, b}, p); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < res; y++ {
		if got := a.Grid.At(res-1, y); math.Abs(got-0.5) > eps {
			t.Errorf("row %d: seam = %g, want 0.5", y, got)
		}
	}
	// Far from the seam the falloff is zero.
	if got := a.Grid.At(0, 4); got != 0 {
		t.Errorf("far cell of a = %g, want 0", got)
	}
	if got := b.Grid.At(res-1, 4); got != 1 {
		t.Errorf("far cell of b = %g, want 1", got)
	}
}

func TestBlendZeroTilesStayZero(t *testing.T) {
	a := Tile{Name: "a", Size: 10, Grid: heightmap.MustNew(5)}
	b := Tile{Name: "b", Position: mgl64.Vec2{0, 10}, Size: 10, Grid: heightmap.MustNew(5)}
	p := DefaultParams()
	p.Amplitude = 0

	if err := Blend([]Tile{a, b}, p); err != nil {
		t.Fatal(err)
	}
	for _, tile := range []Tile{a, b} {
		if tile.Grid.Max() != 0 || tile.Grid.Min() != 0 {
			t.Errorf("tile %s changed: %v", tile.Name, tile.Grid.Stats())
		}
	}
}

func TestBlendNoStepsIsInert(t *testing.T) {
	a := randomTile("a", 0, 0, 8, 5)
	b := randomTile("b", 0, 100, 8, 6)
	before := a.Grid.Clone()
	p := DefaultParams()
	p.MaxStep = 0
	if err := Blend([]Tile{a, b}, p); err != nil {
		t.Fatal(err)
	}
	if !a.Grid.Equal(before, 0) {
		t.Error("zero passes should leave tiles untouched")
	}
}

func TestBlendErrors(t *testing.T) {
	a := randomTile("a", 0, 0, 8, 1)
	b := randomTile("b", 0, 100, 9, 2)
	if err := Blend([]Tile{a, b}, DefaultParams()); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("mismatched resolutions: %v", err)
	}

	p := DefaultParams()
	p.BlendScale = 0
	if err := Blend([]Tile{a}, p); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("zero blend scale: %v", err)
	}

	if err := Blend([]Tile{{Name: "empty"}}, DefaultParams()); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("nil grid: %v", err)
	}
}

func TestEdgeString(t *testing.T) {
	if EdgeLeft.String() != "left" || EdgeNone.String() != "none" {
		t.Errorf("edge names: %v %v", EdgeLeft, EdgeNone)
	}
}
