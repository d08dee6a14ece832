// Package config loads tool configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/driftwood/driftwood"
)

// Defaults carries the physical parameters applied when a variable must be
// synthesized and the user supplied nothing.
type Defaults struct {
	Class       string  `yaml:"class"`
	SizeClass   string  `yaml:"size_class"`
	DiameterMM  float64 `yaml:"diameter_mm"`
	DensityKgM3 float64 `yaml:"density_kg_m3"`
}

// Config holds the run tunables a deployment may pin in a file instead of
// repeating on the command line.
type Config struct {
	ExpansionFactor float64  `yaml:"expansion_factor"`
	SafetyThreshold float64  `yaml:"safety_threshold"`
	Compressor      string   `yaml:"compressor"`
	Defaults        Defaults `yaml:"defaults"`
}

// Default returns the built-in configuration.
func Default() Config {
	params := driftwood.DefaultPhysicalParams()
	return Config{
		ExpansionFactor: driftwood.DefaultExpansionFactor,
		SafetyThreshold: driftwood.DefaultSafetyThreshold,
		Compressor:      "zstd",
		Defaults: Defaults{
			Class:       string(params.Class),
			SizeClass:   string(params.Size),
			DiameterMM:  params.DiameterMM,
			DensityKgM3: params.DensityKgM3,
		},
	}
}

// Load reads a YAML config file; keys absent from the file keep their
// built-in defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ExpansionFactor <= 0 {
		return fmt.Errorf("expansion_factor must be positive, got %v", c.ExpansionFactor)
	}
	if c.SafetyThreshold <= 0 || c.SafetyThreshold > 1 {
		return fmt.Errorf("safety_threshold must be in (0, 1], got %v", c.SafetyThreshold)
	}
	if _, err := driftwood.CompressorByName(c.Compressor); err != nil {
		return err
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	return nil
}

// Params converts the configured defaults into validated physical
// parameters.
func (c Config) Params() (driftwood.PhysicalParams, error) {
	class, err := driftwood.ParseParticleClass(c.Defaults.Class)
	if err != nil {
		return driftwood.PhysicalParams{}, err
	}
	size, err := driftwood.ParseSizeClass(c.Defaults.SizeClass)
	if err != nil {
		return driftwood.PhysicalParams{}, err
	}
	p := driftwood.PhysicalParams{
		Class:       class,
		Size:        size,
		DiameterMM:  c.Defaults.DiameterMM,
		DensityKgM3: c.Defaults.DensityKgM3,
	}
	if err := p.Validate(); err != nil {
		return driftwood.PhysicalParams{}, err
	}
	return p, nil
}
