package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type Config struct {
	LogLevel  string `yaml:"loglevel"`
	Format    string
	Shrink    bool
	Overwrite bool

	// YmlError is set when the user config file exists but does not parse.
	YmlError error `yaml:"-"`
}

//go:embed config.yml
var defaultConfigYaml []byte

func loadDefaultConfig() Config {
	var config Config
	if err := yaml.UnmarshalStrict(defaultConfigYaml, &config); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return config
}

// readConfigFile overwrites the fields of target that are present in the
// file at path.
func readConfigFile(path string, target *Config) (exists bool, err error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, yaml.Unmarshal(bytes, target)
}

// MakeConfig returns the embedded defaults overridden by the user's
// config.yml, if there is one.
func MakeConfig() Config {
	config := loadDefaultConfig()
	configDir, err := os.UserConfigDir()
	if err != nil {
		return config
	}
	exists, err := readConfigFile(filepath.Join(configDir, "bgm-convert", "config.yml"), &config)
	if exists {
		config.YmlError = err
	}
	return config
}

func (c Config) Validate() error {
	switch c.Format {
	case "yml", "json":
		return nil
	}
	return fmt.Errorf("invalid format %q, expected yml or json", c.Format)
}
