package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the credentials file.
const (
	EnvCanvasURL   = "CANVAS_URL"
	EnvCanvasToken = "CANVAS_TOKEN"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// Credentials is the content of the credentials file.
type Credentials struct {
	CanvasURL   string `yaml:"canvas_url" toml:"canvas_url"`
	CanvasToken string `yaml:"canvas_token" toml:"canvas_token"`
}

// candidateExts are tried with the AppName base name in the working
// directory, then with the "config" base name in the XDG config directory.
var candidateExts = []string{".toml", ".yaml", ".yml"}

// FindConfigFile searches for the credentials file in the following order:
// 1. configPath, if given; a missing explicit file is ErrConfigNotFound
// 2. canvasmirror.{toml,yaml,yml} in the current directory
// 3. config.{toml,yaml,yml} in the XDG config directory
func FindConfigFile(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return configPath, nil
	}

	for _, ext := range candidateExts {
		p := AppName + ext
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	for _, ext := range candidateExts {
		p := filepath.Join(XDGConfigDir(), "config"+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrConfigNotFound
}

// LoadCredentials reads a YAML or TOML credentials file, chosen by extension.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cred Credentials
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cred); err != nil {
			return nil, fmt.Errorf("config file is not valid TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cred); err != nil {
			return nil, fmt.Errorf("config file is not valid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}
	return &cred, nil
}

// LoadDotEnv reads KEY=VALUE pairs from path without touching the process
// environment. A missing file yields an empty map.
func LoadDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// ResolveCredentials fills CanvasURL and CanvasToken. Precedence, lowest
// first: credentials file, .env file, process environment. The file does
// not replace values already set on c. A missing credentials file is only
// an error when it was given explicitly.
func (c *Config) ResolveCredentials(envFile string) error {
	path, err := FindConfigFile(c.ConfigFilePath)
	switch {
	case err == nil:
		cred, err := LoadCredentials(path)
		if err != nil {
			return err
		}
		c.mergeCredentials(cred.CanvasURL, cred.CanvasToken)
	case c.ConfigFilePath != "":
		return err
	}

	dotenv, err := LoadDotEnv(envFile)
	if err != nil {
		return err
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return dotenv[key]
	}
	if v := lookup(EnvCanvasURL); v != "" {
		c.CanvasURL = v
	}
	if v := lookup(EnvCanvasToken); v != "" {
		c.CanvasToken = v
	}

	c.CanvasURL = strings.TrimRight(strings.TrimSpace(c.CanvasURL), "/")
	c.CanvasToken = strings.TrimSpace(c.CanvasToken)
	return nil
}

func (c *Config) mergeCredentials(canvasURL, token string) {
	if c.CanvasURL == "" {
		c.CanvasURL = canvasURL
	}
	if c.CanvasToken == "" {
		c.CanvasToken = token
	}
}
