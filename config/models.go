package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// modelFile is the on-disk shape of a model-set override.
type modelFile struct {
	Draft struct {
		Primary  string `yaml:"primary"`
		Fallback string `yaml:"fallback"`
	} `yaml:"draft"`
	Repair string `yaml:"repair"`
}

// ApplyModelFile overlays model names from a YAML file onto the
// configuration. Unset entries keep their current value. Unknown keys are
// rejected so a typo does not silently fall back to defaults.
func (c Config) ApplyModelFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading model file: %w", err)
	}

	var mf modelFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return c, fmt.Errorf("parsing model file: %w", err)
	}

	if mf.Draft.Primary != "" {
		c.PrimaryModel = mf.Draft.Primary
	}
	if mf.Draft.Fallback != "" {
		c.FallbackModel = mf.Draft.Fallback
	}
	if mf.Repair != "" {
		c.RepairModel = mf.Repair
	}
	return c, nil
}
