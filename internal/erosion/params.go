package erosion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("erosion: invalid params")

// Mode enumerates the erosion types. Values match the saved-config numbering.
type Mode uint8

const (
	ModeRain    Mode = iota // Random pitting
	ModeThermal             // Talus collapse of steep slopes
	ModeTidal               // Reserved, inert
	ModeRiver               // Surface-water droplets carving channels
	ModeWind                // Dune migration along one axis
	ModeCanyon              // Random-walk trench between two far endpoints
)

var modeNames = [...]string{"rain", "thermal", "tidal", "river", "wind", "canyon"}

// String returns the mode's config name.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// ParseMode maps a config name to a Mode.
func ParseMode(name string) (Mode, error) {
	for i, n := range modeNames {
		if strings.EqualFold(n, name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown erosion type %q", ErrInvalidParams, name)
}

// Params is one erosion invocation's settings. Exactly one mode is active per
// call; the concrete type selects it.
type Params interface {
	Mode() Mode
	Validate() error
	// postSmooth is the radius of the optional smoothing pass after erosion.
	postSmooth() int
}

// Thermal moves material off slopes steeper than Threshold.
type Thermal struct {
	Strength     float64 // Fraction of the height difference moved per neighbour
	Threshold    float64 // Minimum height difference that triggers transport
	Iterations   int
	SmoothRadius int
}

// Rain subtracts Strength at Droplets random cells.
type Rain struct {
	Strength     float64
	Droplets     int
	SmoothRadius int
}

// River releases Droplets water particles that run downhill.
type River struct {
	Strength        float64 // Erosion carried by a fresh droplet
	Solubility      float64 // Erosion lost per hop
	Droplets        int
	SpringsPerRiver int // Maximum hops per droplet
	SmoothRadius    int
}

// Wind digs and piles material along rows, driven by noise.
type Wind struct {
	Strength     float64 // Material moved per dig/pile pair
	Scale        float64 // Noise frequency
	JitterHeight float64 // Noise amplitude in rows
	PileDistance int     // Rows between dig and pile cells
	SmoothRadius int
}

// Tidal is reserved: no coastal levelling is performed.
type Tidal struct {
	WaterHeight  float64
	SmoothRadius int
}

// Canyon carves a trench along a jittered walk between two random endpoints.
// Sizes are fractions of the grid's side length.
type Canyon struct {
	Strength        float64 // Depth of the pit below each dig point
	BankSize        float64 // Radius of influence around each dig point
	BankJiggle      float64 // Noise added to the bank profile
	MinDistance     float64 // Minimum endpoint separation
	Step            float64 // Walk step length
	DirectionJiggle float64 // Random perturbation of each step's direction
	SmoothRadius    int
}

func (Thermal) Mode() Mode { return ModeThermal }
func (Rain) Mode() Mode    { return ModeRain }
func (River) Mode() Mode   { return ModeRiver }
func (Wind) Mode() Mode    { return ModeWind }
func (Tidal) Mode() Mode   { return ModeTidal }
func (Canyon) Mode() Mode  { return ModeCanyon }

func (p Thermal) postSmooth() int { return p.SmoothRadius }
func (p Rain) postSmooth() int    { return p.SmoothRadius }
func (p River) postSmooth() int   { return p.SmoothRadius }
func (p Wind) postSmooth() int    { return p.SmoothRadius }
func (p Tidal) postSmooth() int   { return p.SmoothRadius }
func (p Canyon) postSmooth() int  { return p.SmoothRadius }

func checkSmooth(r int) error {
	if r < 0 {
		return fmt.Errorf("%w: smooth radius must be >= 0", ErrInvalidParams)
	}
	return nil
}

func (p Thermal) Validate() error {
	if p.Iterations < 0 {
		return fmt.Errorf("%w: thermal iterations must be >= 0", ErrInvalidParams)
	}
	if p.Strength < 0 || p.Threshold < 0 {
		return fmt.Errorf("%w: thermal strength and threshold must be >= 0", ErrInvalidParams)
	}
	return checkSmooth(p.SmoothRadius)
}

func (p Rain) Validate() error {
	if p.Droplets < 0 {
		return fmt.Errorf("%w: droplets must be >= 0", ErrInvalidParams)
	}
	return checkSmooth(p.SmoothRadius)
}

func (p River) Validate() error {
	if p.Droplets < 0 || p.SpringsPerRiver < 0 {
		return fmt.Errorf("%w: droplets and springs per river must be >= 0", ErrInvalidParams)
	}
	if p.Solubility < 0 {
		return fmt.Errorf("%w: solubility must be >= 0", ErrInvalidParams)
	}
	return checkSmooth(p.SmoothRadius)
}

func (p Wind) Validate() error {
	if p.JitterHeight < 0 || p.PileDistance < 0 {
		return fmt.Errorf("%w: wind jitter and pile distance must be >= 0", ErrInvalidParams)
	}
	return checkSmooth(p.SmoothRadius)
}

func (p Tidal) Validate() error {
	return checkSmooth(p.SmoothRadius)
}

func (p Canyon) Validate() error {
	if p.Step <= 0 {
		return fmt.Errorf("%w: canyon step must be > 0", ErrInvalidParams)
	}
	if p.BankSize <= 0 {
		return fmt.Errorf("%w: canyon bank size must be > 0", ErrInvalidParams)
	}
	// Two cells of a unit square are at most √2 apart.
	if p.MinDistance < 0 || p.MinDistance >= math.Sqrt2 {
		return fmt.Errorf("%w: canyon min distance must be in [0, √2) (got %g)", ErrInvalidParams, p.MinDistance)
	}
	if p.Strength < 0 {
		return fmt.Errorf("%w: canyon strength must be >= 0", ErrInvalidParams)
	}
	return checkSmooth(p.SmoothRadius)
}

// DefaultThermal returns the stock thermal settings.
func DefaultThermal() Thermal {
	return Thermal{Strength: 0.99, Threshold: 0.005, Iterations: 7}
}

// DefaultRain returns the stock rain settings.
func DefaultRain() Rain {
	return Rain{Strength: 0.99, Droplets: 10}
}

// DefaultRiver returns the stock river settings.
func DefaultRiver() River {
	return River{Strength: 0.99, Solubility: 0.01, Droplets: 10, SpringsPerRiver: 5}
}

// DefaultWind returns the stock wind settings.
func DefaultWind() Wind {
	return Wind{Strength: 0.02, Scale: 0.05, JitterHeight: 20, PileDistance: 5}
}

// DefaultCanyon returns the stock canyon settings.
func DefaultCanyon() Canyon {
	return Canyon{
		Strength:        0.8,
		BankSize:        0.1,
		BankJiggle:      0.5,
		MinDistance:     0.5,
		Step:            0.05,
		DirectionJiggle: 0.2,
	}
}
