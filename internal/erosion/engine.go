// Package erosion reshapes an existing heightmap in place. Six modes are
// supported; the concrete Params type passed to Erode selects one.
package erosion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/terrasmith/internal/entropy"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
	"github.com/talgya/terrasmith/internal/terrain"
)

// Engine runs erosion passes. It is not safe for concurrent use; the random
// source is consumed in a fixed order so a seeded source replays exactly.
type Engine struct {
	rng    entropy.Source
	kernel noise.Kernel
}

// NewEngine creates an Engine over the given random source and noise kernel.
func NewEngine(rng entropy.Source, kernel noise.Kernel) *Engine {
	return &Engine{rng: rng, kernel: kernel}
}

// Erode applies p to g in place and returns g. The only error is invalid params.
func (e *Engine) Erode(g *heightmap.Grid, p Params) (*heightmap.Grid, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil params", ErrInvalidParams)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	switch v := p.(type) {
	case Thermal:
		e.thermal(g, v)
	case Rain:
		e.rain(g, v)
	case River:
		e.river(g, v)
	case Wind:
		e.wind(g, v)
	case Tidal:
		// Coastal levelling is not modelled.
	case Canyon:
		e.canyon(g, v)
	default:
		return nil, fmt.Errorf("%w: unsupported params %T", ErrInvalidParams, p)
	}

	if r := p.postSmooth(); r > 0 {
		if err := g.CopyFrom(terrain.Smooth(g, r)); err != nil {
			return nil, fmt.Errorf("erode smooth: %w", err)
		}
	}

	slog.Debug("erosion applied", "mode", p.Mode().String(), "resolution", g.Resolution(), "elapsed", time.Since(start))
	return g, nil
}

// rain pits Droplets random cells by Strength.
func (e *Engine) rain(g *heightmap.Grid, p Rain) {
	res := g.Resolution()
	for i := 0; i < p.Droplets; i++ {
		x := e.rng.Intn(res)
		y := e.rng.Intn(res)
		g.Add(x, y, -p.Strength)
	}
}
