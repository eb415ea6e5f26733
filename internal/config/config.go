// Package config provides configuration management for bax using Viper.
package config

import (
	"github.com/spf13/viper"

	"github.com/thoreinstein/bax/internal/errors"
	"github.com/thoreinstein/bax/internal/paths"
	"github.com/thoreinstein/bax/pkg/fileutil"
)

// Config represents the top-level configuration structure.
type Config struct {
	Version         int    `mapstructure:"version" yaml:"version"`
	Compression     string `mapstructure:"compression" yaml:"compression"`
	IgnoreFile      string `mapstructure:"ignore_file" yaml:"ignore_file"`
	ChunkSize       int    `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChecksumWorkers int    `mapstructure:"checksum_workers" yaml:"checksum_workers"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	// Config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".") // Current directory
	viper.AddConfigPath(paths.ConfigDir())

	// Environment variable support
	viper.SetEnvPrefix("BAX")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("version", 1)
	viper.SetDefault("compression", "gz")
	viper.SetDefault("ignore_file", ".gitignore")
	viper.SetDefault("chunk_size", fileutil.DefaultChunkSize)
	viper.SetDefault("checksum_workers", 1)
}

// Default returns a configuration with the built-in defaults.
func Default() *Config {
	return &Config{
		Version:         1,
		Compression:     "gz",
		IgnoreFile:      ".gitignore",
		ChunkSize:       fileutil.DefaultChunkSize,
		ChecksumWorkers: 1,
	}
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations and falls back to
// default values when no file exists.
// The loaded configuration is validated before being returned.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file on the search path; defaults apply. An explicit
			// path is handled below since Viper reports it differently.
			if path != "" {
				return nil, errors.Wrapf(err, "config file not found at %s", path)
			}
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Wrap(errs[0], "validating config")
	}

	return &cfg, nil
}
