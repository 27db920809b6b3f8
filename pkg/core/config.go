package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the parsed configuration file
type Config struct {
	// VanityURLs are regular expressions matched against TODO labels. Each
	// should expose a named "id" capture group holding the issue number.
	VanityURLs []string `yaml:"vanityURLs"`
}

// ReadConfig reads the YAML configuration at path. A missing or unreadable
// file yields an empty Config; malformed YAML is an error.
func ReadConfig(path string, logger Logger) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debugf("error reading %q: %v", path, err)
		return Config{}, nil
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return conf, nil
}
