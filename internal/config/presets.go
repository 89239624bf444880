package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PresetAgent identifies one council member inside a preset.
type PresetAgent struct {
	Provider string `yaml:"provider"`
	// Tier overrides the run's default tier when set.
	Tier string `yaml:"tier,omitempty"`
}

// Preset is a named council composition: who answers, who synthesizes,
// and which pipeline variant runs.
type Preset struct {
	Agents   []PresetAgent `yaml:"agents"`
	Chairman PresetAgent   `yaml:"chairman"`
	Fallback *PresetAgent  `yaml:"fallback,omitempty"`
	Mode     string        `yaml:"mode,omitempty"`
	TwoPass  bool          `yaml:"two_pass,omitempty"`
}

// Presets maps preset names to their definitions.
type Presets map[string]Preset

// GetPresetsPath returns the path to the user presets file.
func GetPresetsPath() string {
	return filepath.Join(getUserConfigDir(), "presets.yaml")
}

// LoadPresets reads the preset file at path. A missing file yields an
// empty set, not an error.
func LoadPresets(path string) (Presets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Presets{}, nil
		}
		return nil, fmt.Errorf("reading presets from %s: %w", path, err)
	}

	var presets Presets
	if err := yaml.Unmarshal(raw, &presets); err != nil {
		return nil, fmt.Errorf("parsing presets from %s: %w", path, err)
	}

	for name, p := range presets {
		if err := validatePreset(p); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return presets, nil
}

// SavePresets writes the preset set to path, creating parent directories.
func SavePresets(path string, presets Presets) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating presets directory: %w", err)
	}

	raw, err := yaml.Marshal(presets)
	if err != nil {
		return fmt.Errorf("encoding presets: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("writing presets to %s: %w", path, err)
	}
	return nil
}

func validatePreset(p Preset) error {
	if len(p.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}
	if p.Chairman.Provider == "" {
		return fmt.Errorf("no chairman defined")
	}
	for i, a := range p.Agents {
		if a.Provider == "" {
			return fmt.Errorf("agent %d has no provider", i)
		}
	}
	if p.Mode != "" && p.Mode != "compete" && p.Mode != "merge" {
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	return nil
}
