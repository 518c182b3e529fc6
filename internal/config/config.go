// Package config loads essence's optional YAML configuration file,
// backed by an afero.Fs for testability.
package config

import (
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config holds the optional overrides of ~/.config/essence/config.yaml.
type Config struct {
	PS1                         string `yaml:"ps1"`
	PS2                         string `yaml:"ps2"`
	HistoryLimit                int    `yaml:"history_limit"`
	CompatSubstitutionTruncation bool  `yaml:"compat_substitution_truncation"`
}

// Default returns the configuration in effect when no config file is
// present: no PS1/PS2 override (promptexpander's own fallbacks apply),
// an unbounded history, and the sentinel-byte command-substitution
// truncation behavior preserved.
func Default() Config {
	return Config{
		HistoryLimit:                 0,
		CompatSubstitutionTruncation: true,
	}
}

// Path returns the config file path under homeDir.
func Path(homeDir string) string {
	return filepath.Join(homeDir, ".config", "essence", "config.yaml")
}

// Load reads and parses the config file at Path(homeDir) using fs. A
// missing file is not an error: Default() is returned unchanged.
func Load(fs afero.Fs, homeDir string) (Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, Path(homeDir))
	if err != nil {
		if afero.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), err
	}
	return cfg, nil
}
