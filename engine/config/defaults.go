package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Default returns the factory configuration listed in §6, parsed from the
// embedded human-authored YAML document. Parsing the shipped defaults
// through the same path as every other caller keeps the table in §6 and the
// code honest with each other.
func Default() Config {
	cfg, err := parseDefaults()
	if err != nil {
		// The embedded document is part of the binary; a parse failure here
		// is a build-time bug, not a runtime condition callers can recover
		// from.
		panic(fmt.Sprintf("config: embedded defaults.yaml is invalid: %v", err))
	}
	return cfg
}

func parseDefaults() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
