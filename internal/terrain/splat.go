package terrain

import (
	"math"

	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
)

// SplatLayer is one texture band: it covers cells whose height and slope fall
// inside its ranges. The height band is widened by Offset plus a noise term so
// neighbouring bands interleave instead of meeting on a straight contour.
type SplatLayer struct {
	Name        string  `yaml:"name" json:"name"`
	MinHeight   float64 `yaml:"min_height" json:"min_height"`
	MaxHeight   float64 `yaml:"max_height" json:"max_height"`
	MinSlope    float64 `yaml:"min_slope" json:"min_slope"` // Degrees
	MaxSlope    float64 `yaml:"max_slope" json:"max_slope"` // Degrees
	Offset      float64 `yaml:"offset" json:"offset"`
	NoiseXScale float64 `yaml:"noise_x_scale" json:"noise_x_scale"`
	NoiseYScale float64 `yaml:"noise_y_scale" json:"noise_y_scale"`
	NoiseZScale float64 `yaml:"noise_z_scale" json:"noise_z_scale"`
}

// DefaultSplatLayer covers a low band on any slope.
func DefaultSplatLayer() SplatLayer {
	return SplatLayer{
		MinHeight:   0.1,
		MaxHeight:   0.2,
		MinSlope:    0,
		MaxSlope:    90,
		Offset:      0.1,
		NoiseXScale: 0.01,
		NoiseYScale: 0.01,
		NoiseZScale: 0.1,
	}
}

// UnmarshalYAML fills fields the document leaves out with DefaultSplatLayer values.
func (l *SplatLayer) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain SplatLayer
	p := plain(DefaultSplatLayer())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*l = SplatLayer(p)
	return nil
}

// Steepness returns the slope at (x, y) in degrees, from central differences
// clamped at the edges. The tile is treated as a unit cube: one grid side spans
// the same distance as the full height range.
func Steepness(g *heightmap.Grid, x, y int) float64 {
	res := g.Resolution()
	x0, x1 := heightmap.Clamp(x-1, 0, res-1), heightmap.Clamp(x+1, 0, res-1)
	y0, y1 := heightmap.Clamp(y-1, 0, res-1), heightmap.Clamp(y+1, 0, res-1)

	spacing := 1 / float64(res-1)
	dx := (g.At(x1, y) - g.At(x0, y)) / (float64(x1-x0) * spacing)
	dy := (g.At(x, y1) - g.At(x, y0)) / (float64(y1-y0) * spacing)
	return math.Atan(math.Hypot(dx, dy)) * 180 / math.Pi
}

// SplatWeights returns, per cell (row-major), one weight per layer. A layer
// whose bands contain the cell gets weight 1; weights are then normalised to
// sum to 1. Cells no layer covers keep all-zero weights.
func SplatWeights(g *heightmap.Grid, layers []SplatLayer, kernel noise.Kernel) [][]float64 {
	res := g.Resolution()
	weights := make([][]float64, res*res)

	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			w := make([]float64, len(layers))
			h := g.At(x, y)
			slope := Steepness(g, x, y)

			total := 0.0
			for i, l := range layers {
				off := l.Offset + kernel.Eval(float64(x)*l.NoiseXScale, float64(y)*l.NoiseYScale)*l.NoiseZScale
				if h < l.MinHeight-off || h > l.MaxHeight+off {
					continue
				}
				if slope < l.MinSlope || slope > l.MaxSlope {
					continue
				}
				w[i] = 1
				total++
			}
			if total > 0 {
				for i := range w {
					w[i] /= total
				}
			}
			weights[y*res+x] = w
		}
	}
	return weights
}
