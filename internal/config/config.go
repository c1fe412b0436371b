package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultConcurrency is the number of permits shared by both phases:
	// at most this many Canvas requests or downloads run at once.
	DefaultConcurrency = 8

	// DefaultTimeout bounds one API request including reading its body.
	// Downloads are streamed and not bound by it.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts is the number of tries for a request that keeps
	// answering 403, which Canvas uses for throttling.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff step; attempt n waits
	// DefaultBaseDelay*2^n plus jitter.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultDestination is the directory courses are mirrored into.
	DefaultDestination = "."

	// DefaultIgnoreFile is looked up in the working directory when
	// --ignore-file is not given.
	DefaultIgnoreFile = ".canvasignore"

	// AppName is the application name used for XDG directory paths and the
	// credentials file name.
	AppName = "canvasmirror"

	// DefaultUserAgent identifies canvasmirror in HTTP requests.
	DefaultUserAgent = "canvasmirror/1.0 (+https://github.com/nao1215/canvasmirror)"
)

// Config holds all configuration options for a canvasmirror run.
// It is populated from CLI flags, the credentials file and the environment,
// and passed through the application rather than kept in global state.
type Config struct {
	// CanvasURL is the base URL of the Canvas instance, without a trailing
	// slash, e.g. "https://canvas.example.edu".
	CanvasURL string

	// CanvasToken is the API access token sent as a Bearer credential.
	CanvasToken string

	// ConfigFilePath is the explicit credentials file given by --config.
	ConfigFilePath string

	// Destination is the directory that receives one sub-directory per course.
	Destination string

	// DownloadNewer replaces local files when the remote copy is newer.
	// When false such files are only reported.
	DownloadNewer bool

	// TermIDs selects courses by enrollment term.
	TermIDs []int64

	// CourseNames selects courses by exact name or course code.
	CourseNames []string

	// IgnoreFile is a gitignore-style file evaluated relative to Destination.
	// Empty means DefaultIgnoreFile when it exists.
	IgnoreFile string

	// DryRun prints the download plan and stops before downloading.
	DryRun bool

	// AssumeYes skips the confirmation prompt.
	AssumeYes bool

	// Verbose enables Debug logging.
	Verbose bool

	// Concurrency is the size of the shared permit pool.
	Concurrency int

	// Timeout bounds one API request.
	Timeout time.Duration

	// MaxAttempts is the number of tries on HTTP 403.
	MaxAttempts int

	// BaseDelay is the first backoff step on HTTP 403.
	BaseDelay time.Duration

	// ProxyAddress optionally routes all traffic through a SOCKS5 proxy
	// ("host:port").
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// JSONReport writes the plan and summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the plan and summary as Markdown.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records each non-dry run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Destination: DefaultDestination,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		UserAgent:   DefaultUserAgent,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for canvasmirror.
// On Linux: ~/.local/share/canvasmirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for canvasmirror.
// On Linux: ~/.config/canvasmirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// HasFilters reports whether any term or course filter was given.
// Without filters a sync only lists the available courses.
func (c *Config) HasFilters() bool {
	return len(c.TermIDs) > 0 || len(c.CourseNames) > 0
}

// APIURL joins path onto the Canvas base URL.
func (c *Config) APIURL(path string) string {
	return strings.TrimRight(c.CanvasURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.CanvasURL == "" {
		return ErrNoCanvasURL
	}
	u, err := url.Parse(c.CanvasURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidCanvasURL
	}

	if c.CanvasToken == "" {
		return ErrNoCanvasToken
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxAttempts < 1 || c.BaseDelay < 0 {
		return ErrInvalidRetry
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
