package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"buildmaster-console/src/build"
)

// Preset is a named, reusable build configuration.
type Preset struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Config      build.Config `yaml:"config"`
}

type presetsFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads named build presets from a YAML file. Every preset must
// have a unique name and a structurally valid configuration.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets file: %w", err)
	}

	seen := make(map[string]bool)
	for i, p := range file.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate preset name: %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.Config.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}

	return file.Presets, nil
}

// FindPreset returns the preset with the given name.
func FindPreset(presets []Preset, name string) (Preset, error) {
	for _, p := range presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset: %q", name)
}
