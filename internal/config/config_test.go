package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/driftwood/driftwood"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driftwood.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ExpansionFactor != driftwood.DefaultExpansionFactor {
		t.Errorf("expansion = %v", cfg.ExpansionFactor)
	}
	if cfg.SafetyThreshold != driftwood.DefaultSafetyThreshold {
		t.Errorf("threshold = %v", cfg.SafetyThreshold)
	}
	if cfg.Compressor != "zstd" {
		t.Errorf("compressor = %q", cfg.Compressor)
	}

	params, err := cfg.Params()
	if err != nil {
		t.Fatal(err)
	}
	if params != driftwood.DefaultPhysicalParams() {
		t.Errorf("params = %+v", params)
	}
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
expansion_factor: 2.5
defaults:
  class: oil
  size_class: small
  diameter_mm: 0.5
  density_kg_m3: 900
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ExpansionFactor != 2.5 {
		t.Errorf("expansion = %v, want 2.5", cfg.ExpansionFactor)
	}
	// Keys absent from the file keep their defaults.
	if cfg.SafetyThreshold != driftwood.DefaultSafetyThreshold {
		t.Errorf("threshold = %v, want default", cfg.SafetyThreshold)
	}
	if cfg.Compressor != "zstd" {
		t.Errorf("compressor = %q, want zstd", cfg.Compressor)
	}

	params, err := cfg.Params()
	if err != nil {
		t.Fatal(err)
	}
	if params.Class != driftwood.ClassOil || params.DiameterMM != 0.5 {
		t.Errorf("params = %+v", params)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad expansion": "expansion_factor: -1\n",
		"bad threshold": "safety_threshold: 2\n",
		"bad class":     "defaults:\n  class: plastic\n",
		"bad comp":      "compressor: brotli\n",
		"not yaml":      "{{{{\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/driftwood.yaml"); err == nil {
		t.Error("missing file should fail")
	}
}
