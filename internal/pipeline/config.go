// Package pipeline runs a configured sequence of generation, erosion, and
// blending stages over a set of tiles and commits the result to a store.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/talgya/terrasmith/internal/blend"
	"github.com/talgya/terrasmith/internal/erosion"
	"github.com/talgya/terrasmith/internal/heightmap"
	"github.com/talgya/terrasmith/internal/noise"
	"github.com/talgya/terrasmith/internal/terrain"
)

// ErrInvalidConfig is wrapped by pipeline configuration errors.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// Stage types.
const (
	StagePerlin   = "perlin"
	StageVoronoi  = "voronoi"
	StageMidpoint = "midpoint"
	StageSmooth   = "smooth"
	StageErode    = "erode"
	StageBlend    = "blend"
	StageReset    = "reset"
	StageClamp    = "clamp"
)

// Config is a complete pipeline description.
type Config struct {
	Seed       int64      `yaml:"seed" json:"seed"` // 0 draws a random seed
	Noise      noise.Kind `yaml:"noise" json:"noise"`
	Resolution int        `yaml:"resolution" json:"resolution"`
	TileSize   float64    `yaml:"tile_size" json:"tile_size"`
	Tiles      []TileSpec `yaml:"tiles" json:"tiles"`
	Stages     []Stage    `yaml:"stages" json:"stages"`
}

// TileSpec places one tile in the world.
type TileSpec struct {
	Name string  `yaml:"name" json:"name"`
	X    float64 `yaml:"x" json:"x"`
	Z    float64 `yaml:"z" json:"z"`
}

// Stage is one step of the pipeline. Type selects which of the remaining
// fields apply.
type Stage struct {
	Type             string                     `yaml:"type" json:"type"`
	Reset            bool                       `yaml:"reset" json:"reset"`
	RandomizeOffsets bool                       `yaml:"randomize_offsets" json:"randomize_offsets"`
	Layers           []terrain.NoiseLayer       `yaml:"layers" json:"layers,omitempty"`
	Peaks            terrain.RadialPeakParams   `yaml:"peaks" json:"peaks"`
	Displacement     terrain.DisplacementParams `yaml:"displacement" json:"displacement"`
	Radius           int                        `yaml:"radius" json:"radius"`
	Erosion          erosion.Config             `yaml:"erosion" json:"erosion"`
	Blend            blend.Params               `yaml:"blend" json:"blend"`
}

// DefaultStage returns a stage of the given type with stock parameters.
func DefaultStage(kind string) Stage {
	return Stage{
		Type:         kind,
		Reset:        kind == StagePerlin,
		Peaks:        terrain.DefaultRadialPeakParams(),
		Displacement: terrain.DefaultDisplacementParams(),
		Radius:       1,
		Erosion:      erosion.DefaultConfig(erosion.ModeThermal),
		Blend:        blend.DefaultParams(),
	}
}

// UnmarshalYAML fills parameters the document leaves out with stock values.
func (s *Stage) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Stage
	p := plain(DefaultStage(""))
	p.Reset = false
	if err := unmarshal(&p); err != nil {
		return err
	}
	*s = Stage(p)
	return nil
}

// DefaultConfig returns a single-tile pipeline: rolling hills, a few peaks,
// and a thermal pass.
func DefaultConfig() *Config {
	perlin := DefaultStage(StagePerlin)
	perlin.Layers = []terrain.NoiseLayer{terrain.DefaultNoiseLayer()}
	return &Config{
		Seed:       42,
		Noise:      noise.KindPerlin,
		Resolution: 129,
		TileSize:   1000,
		Tiles:      []TileSpec{{Name: "main"}},
		Stages: []Stage{
			perlin,
			DefaultStage(StageVoronoi),
			DefaultStage(StageErode),
		},
	}
}

// SmallTestConfig returns a fast two-tile pipeline exercising every stage type.
func SmallTestConfig() *Config {
	perlin := DefaultStage(StagePerlin)
	perlin.Layers = []terrain.NoiseLayer{terrain.DefaultNoiseLayer()}

	rain := DefaultStage(StageErode)
	rain.Erosion = erosion.DefaultConfig(erosion.ModeRain)
	rain.Erosion.Strength = 0.05

	return &Config{
		Seed:       7,
		Noise:      noise.KindPerlin,
		Resolution: 17,
		TileSize:   100,
		Tiles: []TileSpec{
			{Name: "south", X: 0, Z: 0},
			{Name: "north", X: 0, Z: 100},
		},
		Stages: []Stage{
			perlin,
			DefaultStage(StageVoronoi),
			DefaultStage(StageMidpoint),
			DefaultStage(StageErode),
			rain,
			DefaultStage(StageSmooth),
			DefaultStage(StageBlend),
		},
	}
}

// Parse decodes a YAML pipeline over DefaultConfig and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a YAML pipeline file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("serialize pipeline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pipeline: %w", err)
	}
	return nil
}

// Validate checks the whole config, including every stage's parameters.
func (c *Config) Validate() error {
	if c.Resolution < heightmap.MinResolution {
		return fmt.Errorf("%w: resolution must be >= %d (got %d)", ErrInvalidConfig, heightmap.MinResolution, c.Resolution)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("%w: tile size must be > 0", ErrInvalidConfig)
	}
	if _, err := noise.New(c.Noise, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(c.Tiles) == 0 {
		return fmt.Errorf("%w: no tiles", ErrInvalidConfig)
	}
	names := make(map[string]bool, len(c.Tiles))
	for _, t := range c.Tiles {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: tile with empty name", ErrInvalidConfig)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: duplicate tile %q", ErrInvalidConfig, t.Name)
		}
		names[t.Name] = true
	}
	for i, s := range c.Stages {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stage %d (%s): %w", i, s.Type, err)
		}
	}
	return nil
}

// Validate checks the parameters the stage's type uses.
func (s Stage) Validate() error {
	switch s.Type {
	case StagePerlin:
		for i, l := range s.Layers {
			if err := l.Validate(); err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
		}
	case StageVoronoi:
		return s.Peaks.Validate()
	case StageMidpoint:
		return s.Displacement.Validate()
	case StageSmooth:
		if s.Radius < 0 {
			return fmt.Errorf("%w: smooth radius must be >= 0", ErrInvalidConfig)
		}
	case StageErode:
		_, err := s.Erosion.Params()
		return err
	case StageBlend:
		return s.Blend.Validate()
	case StageReset, StageClamp:
	default:
		return fmt.Errorf("%w: unknown stage type %q", ErrInvalidConfig, s.Type)
	}
	return nil
}
