package main

import (
	"io"

	yaml "gopkg.in/yaml.v2"
)

type StorageConfig struct {
	Backend string `yaml:"backend"`
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
}

func DefaultConfiguration() *Config {
	return &Config{
		Storage: StorageConfig{Backend: "memory"},
	}
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfiguration()
	err = yaml.Unmarshal(buf, cfg)

	return cfg, err
}
