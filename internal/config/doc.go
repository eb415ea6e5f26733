// Package config provides configuration management for the bax CLI.
//
// This package handles loading and validating the bax tool's own
// configuration file, plus the optional tree-local options file read from
// the root of the directory being backed up.
//
// # Configuration File
//
// The default configuration file location is ~/.config/bax/config.yaml.
// The configuration file uses YAML format with the following structure:
//
//	version: 1
//	compression: gz        # gz, bz2, xz, zst, or none
//	ignore_file: .gitignore
//	chunk_size: 32768
//	checksum_workers: 1
//
// Every key can also be set through the environment using the BAX_ prefix,
// for example BAX_COMPRESSION=xz.
//
// # Loading Configuration
//
// Call [Init] once at startup, then [Load]:
//
//	config.Init()
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//
// An empty path searches the default locations and falls back to defaults
// when no file exists; an explicit path must exist.
//
// # Tree-Local Options
//
// A source tree can carry a .bax.toml file at its root with per-tree
// settings:
//
//	compression = "zst"
//	detailed = true
//	ignore = ["*.iso", "tmp/"]
//
// [LoadOptions] reads it; command-line flags take precedence over it, and
// it takes precedence over the global configuration.
//
// # Validation
//
// All loaded configurations are validated automatically. You can also
// validate a configuration manually:
//
//	errs := config.Validate(cfg)
//	if len(errs) > 0 {
//	    for _, e := range errs {
//	        fmt.Println(e)
//	    }
//	}
//
// # Default Values
//
// The [Default] function returns a configuration with the built-in
// defaults, which is also what a fresh `bax config init` writes to disk.
package config
