// Package config provides configuration structures and utilities for
// canvasmirror. It defines the run options, their defaults and validation,
// and loads Canvas credentials from a YAML or TOML file, a .env file and
// the environment.
package config
