package erosion

import "strings"

// Config is the flat, file-friendly form of Params. Type selects the mode;
// fields that mode does not use are ignored. Params reads every field as
// written, so start from DefaultConfig to get the mode's stock values.
type Config struct {
	Type         string `yaml:"type" json:"type"`
	SmoothRadius int    `yaml:"smooth_radius" json:"smooth_radius"`

	Strength   float64 `yaml:"strength" json:"strength"`
	Threshold  float64 `yaml:"threshold" json:"threshold"`
	Iterations int     `yaml:"iterations" json:"iterations"`

	Droplets        int     `yaml:"droplets" json:"droplets"`
	SpringsPerRiver int     `yaml:"springs_per_river" json:"springs_per_river"`
	Solubility      float64 `yaml:"solubility" json:"solubility"`

	WindScale    float64 `yaml:"wind_scale" json:"wind_scale"`
	JitterHeight float64 `yaml:"jitter_height" json:"jitter_height"`
	PileDistance int     `yaml:"pile_distance" json:"pile_distance"`

	WaterHeight float64 `yaml:"water_height" json:"water_height"`

	BankSize        float64 `yaml:"bank_size" json:"bank_size"`
	BankJiggle      float64 `yaml:"bank_jiggle" json:"bank_jiggle"`
	MinDistance     float64 `yaml:"min_distance" json:"min_distance"`
	Step            float64 `yaml:"step" json:"step"`
	DirectionJiggle float64 `yaml:"direction_jiggle" json:"direction_jiggle"`
}

// DefaultConfig returns the stock parameters of mode in flat form.
func DefaultConfig(mode Mode) Config {
	switch mode {
	case ModeThermal:
		return ConfigOf(DefaultThermal())
	case ModeRain:
		return ConfigOf(DefaultRain())
	case ModeRiver:
		return ConfigOf(DefaultRiver())
	case ModeWind:
		return ConfigOf(DefaultWind())
	case ModeCanyon:
		return ConfigOf(DefaultCanyon())
	}
	return ConfigOf(Tidal{})
}

// ConfigOf flattens p.
func ConfigOf(p Params) Config {
	c := Config{Type: p.Mode().String(), SmoothRadius: p.postSmooth()}
	switch v := p.(type) {
	case Thermal:
		c.Strength, c.Threshold, c.Iterations = v.Strength, v.Threshold, v.Iterations
	case Rain:
		c.Strength, c.Droplets = v.Strength, v.Droplets
	case River:
		c.Strength, c.Solubility = v.Strength, v.Solubility
		c.Droplets, c.SpringsPerRiver = v.Droplets, v.SpringsPerRiver
	case Wind:
		c.Strength, c.WindScale = v.Strength, v.Scale
		c.JitterHeight, c.PileDistance = v.JitterHeight, v.PileDistance
	case Tidal:
		c.WaterHeight = v.WaterHeight
	case Canyon:
		c.Strength, c.BankSize, c.BankJiggle = v.Strength, v.BankSize, v.BankJiggle
		c.MinDistance, c.Step, c.DirectionJiggle = v.MinDistance, v.Step, v.DirectionJiggle
	}
	return c
}

// UnmarshalYAML fills fields the document leaves out with the defaults of
// the document's mode. Without a type the current mode is kept, falling
// back to thermal.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := unmarshal(&head); err != nil {
		return err
	}
	name := head.Type
	if strings.TrimSpace(name) == "" {
		name = c.Type
	}

	type plain Config
	p := plain{Type: name}
	if mode, err := ParseMode(name); err == nil {
		p = plain(DefaultConfig(mode))
	} else if name == "" {
		p = plain(DefaultConfig(ModeThermal))
	}
	if err := unmarshal(&p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// Params converts the config into validated Params.
func (c Config) Params() (Params, error) {
	mode, err := ParseMode(c.Type)
	if err != nil {
		return nil, err
	}

	var p Params
	switch mode {
	case ModeThermal:
		p = Thermal{Strength: c.Strength, Threshold: c.Threshold, Iterations: c.Iterations, SmoothRadius: c.SmoothRadius}
	case ModeRain:
		p = Rain{Strength: c.Strength, Droplets: c.Droplets, SmoothRadius: c.SmoothRadius}
	case ModeRiver:
		p = River{
			Strength:        c.Strength,
			Solubility:      c.Solubility,
			Droplets:        c.Droplets,
			SpringsPerRiver: c.SpringsPerRiver,
			SmoothRadius:    c.SmoothRadius,
		}
	case ModeWind:
		p = Wind{
			Strength:     c.Strength,
			Scale:        c.WindScale,
			JitterHeight: c.JitterHeight,
			PileDistance: c.PileDistance,
			SmoothRadius: c.SmoothRadius,
		}
	case ModeTidal:
		p = Tidal{WaterHeight: c.WaterHeight, SmoothRadius: c.SmoothRadius}
	case ModeCanyon:
		p = Canyon{
			Strength:        c.Strength,
			BankSize:        c.BankSize,
			BankJiggle:      c.BankJiggle,
			MinDistance:     c.MinDistance,
			Step:            c.Step,
			DirectionJiggle: c.DirectionJiggle,
			SmoothRadius:    c.SmoothRadius,
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
