// Package noise provides coherent 2D noise kernels and fractal Brownian motion
// over them. Every kernel returns values in [0, 1] and is deterministic for a
// given seed.
package noise

import (
	"fmt"
	"strings"

	"github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Kernel is a seeded coherent noise function.
type Kernel interface {
	// Eval returns the noise value at (x, y) in [0, 1].
	Eval(x, y float64) float64
}

// Kind names a kernel implementation in configuration.
type Kind string

const (
	KindPerlin  Kind = "perlin"
	KindSimplex Kind = "simplex"
)

// New builds the kernel named by kind. An empty kind selects Perlin.
func New(kind Kind, seed int64) (Kernel, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case "", KindPerlin:
		return NewPerlin(seed), nil
	case KindSimplex:
		return NewSimplex(seed), nil
	default:
		return nil, fmt.Errorf("noise: unknown kernel %q (use perlin or simplex)", kind)
	}
}

// Perlin is classic gradient noise.
type Perlin struct {
	p *perlin.Perlin
}

// NewPerlin creates a single-octave Perlin kernel. Octaves are layered by FBM,
// so the library's own alpha/beta octave controls stay neutral.
func NewPerlin(seed int64) *Perlin {
	return &Perlin{p: perlin.NewPerlin(2, 2, 1, seed)}
}

// Eval remaps the library's [-1, 1] output into [0, 1].
func (k *Perlin) Eval(x, y float64) float64 {
	v := (k.p.Noise2D(x, y) + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Simplex is OpenSimplex noise.
type Simplex struct {
	n opensimplex.Noise
}

// NewSimplex creates an OpenSimplex kernel with normalised output.
func NewSimplex(seed int64) *Simplex {
	return &Simplex{n: opensimplex.NewNormalized(seed)}
}

func (k *Simplex) Eval(x, y float64) float64 {
	return k.n.Eval2(x, y)
}

// Func adapts a plain function to Kernel. Used for constant kernels in tests.
type Func func(x, y float64) float64

func (f Func) Eval(x, y float64) float64 { return f(x, y) }
