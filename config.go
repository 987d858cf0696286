package cacheproxy

import (
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file contents. Zero values mean
// "not set"; the CLI applies defaults and flag overrides on top.
type FileConfig struct {
	Port       int             `yaml:"port"`
	Admin      string          `yaml:"admin"`
	MaxClients int             `yaml:"maxClients"`
	Cache      FileCacheConfig `yaml:"cache"`
}

type FileCacheConfig struct {
	CapacityBytes int64 `yaml:"capacityBytes"`
	MaxEntryBytes int64 `yaml:"maxEntryBytes"`
}

func LoadConfig(filename string) (FileConfig, error) {
	var config FileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
