package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoCanvasURL is returned when no Canvas base URL was configured by
	// file, .env or CANVAS_URL.
	ErrNoCanvasURL = errors.New("no Canvas URL configured: set canvas_url in the config file or CANVAS_URL")

	// ErrInvalidCanvasURL is returned when the Canvas URL is not an absolute
	// http or https URL.
	ErrInvalidCanvasURL = errors.New("invalid Canvas URL: must be an absolute http(s) URL")

	// ErrNoCanvasToken is returned when no API access token was configured.
	ErrNoCanvasToken = errors.New("no Canvas token configured: set canvas_token in the config file or CANVAS_TOKEN")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the permit count is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRetry is returned when the attempt count is below one or the
	// base delay is negative.
	ErrInvalidRetry = errors.New("invalid retry settings: attempts must be at least 1 and delay non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConfigNotFound is returned when no credentials file exists at the
	// explicit path or at any of the default locations.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnsupportedConfigFormat is returned for credentials files that are
	// neither YAML nor TOML.
	ErrUnsupportedConfigFormat = errors.New("unsupported configuration file format: use .yaml, .yml or .toml")
)
