package terrain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every parameter validation failure.
var ErrInvalidConfig = errors.New("terrain: invalid config")

// MaxPerlinOffset bounds the offsets drawn when a Perlin pass randomises them.
const MaxPerlinOffset = 1000

// NoiseLayer configures one additive fBM layer.
type NoiseLayer struct {
	XScale  float64 `yaml:"x_scale" json:"x_scale"`
	YScale  float64 `yaml:"y_scale" json:"y_scale"`
	ZScale  float64 `yaml:"z_scale" json:"z_scale"` // Amplitude of the layer
	XOffset int     `yaml:"x_offset" json:"x_offset"`
	YOffset int     `yaml:"y_offset" json:"y_offset"`
	Octaves int     `yaml:"octaves" json:"octaves"`

	// Per octave, amplitude is multiplied by Persistence and frequency by Lacunarity.
	Persistence float64 `yaml:"persistence" json:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity" json:"lacunarity"`
}

// DefaultNoiseLayer returns the stock layer: gentle rolling hills.
func DefaultNoiseLayer() NoiseLayer {
	return NoiseLayer{
		XScale:      0.05,
		YScale:      0.05,
		ZScale:      1,
		Octaves:     3,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

// UnmarshalYAML fills fields the document leaves out with DefaultNoiseLayer values.
func (l *NoiseLayer) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain NoiseLayer
	p := plain(DefaultNoiseLayer())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*l = NoiseLayer(p)
	return nil
}

// Validate checks the layer's invariants.
func (l NoiseLayer) Validate() error {
	if l.Octaves < 1 {
		return fmt.Errorf("%w: octaves must be >= 1 (got %d)", ErrInvalidConfig, l.Octaves)
	}
	if l.XScale <= 0 || l.YScale <= 0 || l.ZScale <= 0 {
		return fmt.Errorf("%w: x, y, and z scale must be > 0", ErrInvalidConfig)
	}
	if l.Persistence <= 0 || l.Lacunarity <= 0 {
		return fmt.Errorf("%w: persistence and lacunarity must be > 0", ErrInvalidConfig)
	}
	return nil
}

// RadialPeakParams configures radial peak ("Voronoi") synthesis.
// Per peak, height, scale, and smoothness are drawn uniformly from their ranges.
type RadialPeakParams struct {
	PeakCount     int     `yaml:"peak_count" json:"peak_count"`
	HeightMin     float64 `yaml:"height_min" json:"height_min"`
	HeightMax     float64 `yaml:"height_max" json:"height_max"`
	ScaleMin      float64 `yaml:"scale_min" json:"scale_min"`
	ScaleMax      float64 `yaml:"scale_max" json:"scale_max"`
	SmoothnessMin float64 `yaml:"smoothness_min" json:"smoothness_min"`
	SmoothnessMax float64 `yaml:"smoothness_max" json:"smoothness_max"`

	// Amplitude 0 gives a flat plateau, 1 the full cosine falloff.
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
}

// DefaultRadialPeakParams returns five mid-to-high peaks.
func DefaultRadialPeakParams() RadialPeakParams {
	return RadialPeakParams{
		PeakCount:     5,
		HeightMin:     0.5,
		HeightMax:     1,
		ScaleMin:      3,
		ScaleMax:      10,
		SmoothnessMin: 0.5,
		SmoothnessMax: 2,
		Amplitude:     0.5,
	}
}

// Validate checks count, ranges, and amplitude.
func (p RadialPeakParams) Validate() error {
	if p.PeakCount < 0 {
		return fmt.Errorf("%w: peak count must be >= 0", ErrInvalidConfig)
	}
	if p.HeightMin > p.HeightMax {
		return fmt.Errorf("%w: height range [%g, %g] is inverted", ErrInvalidConfig, p.HeightMin, p.HeightMax)
	}
	if p.ScaleMin > p.ScaleMax || p.ScaleMin < 0 {
		return fmt.Errorf("%w: scale range [%g, %g] is invalid", ErrInvalidConfig, p.ScaleMin, p.ScaleMax)
	}
	if p.SmoothnessMin > p.SmoothnessMax || p.SmoothnessMin < 0 {
		return fmt.Errorf("%w: smoothness range [%g, %g] is invalid", ErrInvalidConfig, p.SmoothnessMin, p.SmoothnessMax)
	}
	if p.Amplitude < 0 || p.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude must be in [0, 1] (got %g)", ErrInvalidConfig, p.Amplitude)
	}
	return nil
}

// DisplacementParams configures diamond-square midpoint displacement.
// Each subdivision multiplies the perturbation range by DampenerPower^-Roughness.
type DisplacementParams struct {
	Roughness     float64 `yaml:"roughness" json:"roughness"`
	HeightMin     float64 `yaml:"height_min" json:"height_min"`
	HeightMax     float64 `yaml:"height_max" json:"height_max"`
	DampenerPower float64 `yaml:"dampener_power" json:"dampener_power"`
	HeightScale   float64 `yaml:"height_scale" json:"height_scale"` // Blend factor onto the base grid
}

// DefaultDisplacementParams returns the stock midpoint displacement settings.
func DefaultDisplacementParams() DisplacementParams {
	return DisplacementParams{
		Roughness:     3,
		HeightMin:     0.1,
		HeightMax:     0.7,
		DampenerPower: 2,
		HeightScale:   0.5,
	}
}

// Validate checks the perturbation range and dampener base.
func (p DisplacementParams) Validate() error {
	if p.HeightMin > p.HeightMax {
		return fmt.Errorf("%w: height range [%g, %g] is inverted", ErrInvalidConfig, p.HeightMin, p.HeightMax)
	}
	if p.DampenerPower <= 0 {
		return fmt.Errorf("%w: dampener power must be > 0", ErrInvalidConfig)
	}
	return nil
}
