package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imgcrawl"

	// DefaultMaxRetries is the number of retries after the first attempt,
	// so a URL is tried at most four times.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the wait before each retry.
	DefaultRetryDelay = 1 * time.Second

	// DefaultConcurrency is the number of fetches in flight at once.
	DefaultConcurrency = 16

	// DefaultTimeout bounds a single fetch attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultOutputDir is where images are saved, relative to the working
	// directory.
	DefaultOutputDir = "images"

	// DefaultBackoff keeps the delay between attempts constant.
	DefaultBackoff = "fixed"

	// DefaultDigest names image files by the SHA-256 of their URL.
	DefaultDigest = "sha256"

	// DefaultMaxBodySize caps how much of a response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all options of a crawl run.
// It is populated from the config file first and CLI flags second, then
// passed down explicitly.
type Config struct {
	// Seed is the URL the crawl starts from. Its host bounds the crawl.
	Seed string

	// MaxRetries is the number of retries after the initial attempt of a
	// page or image fetch.
	MaxRetries int

	// RetryDelay is the wait before a retry.
	RetryDelay time.Duration

	// Backoff is "fixed" or "exponential".
	Backoff string

	// Concurrency is the number of workers.
	Concurrency int

	// Timeout bounds every single fetch attempt.
	Timeout time.Duration

	// OutputDir is the directory images are written to.
	OutputDir string

	// Digest is "sha256" or "sha3-256".
	Digest string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// InspectEXIF enables EXIF inspection of saved images.
	InspectEXIF bool

	// Verbose enables debug logging; Quiet limits logging to warnings.
	Verbose bool
	Quiet   bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// JSONReport and MarkdownReport select the report format. Text is the
	// default. They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// ConfigFilePath is an explicit config file. Empty means search for
	// .imgcrawl in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the loaded config file, if any.
	SiteConfigs *File

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores the run report in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxRetries:  DefaultMaxRetries,
		RetryDelay:  DefaultRetryDelay,
		Backoff:     DefaultBackoff,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		OutputDir:   DefaultOutputDir,
		Digest:      DefaultDigest,
		MaxBodySize: DefaultMaxBodySize,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for imgcrawl.
// On Linux: ~/.local/share/imgcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imgcrawl.
// On Linux: ~/.config/imgcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.Backoff != "fixed" && c.Backoff != "exponential" {
		return ErrInvalidBackoff
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if c.Digest != "sha256" && c.Digest != "sha3-256" {
		return ErrInvalidDigest
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ApplyFile fills the crawl settings of the config file's defaults section
// into c. set reports whether a setting was given on the command line, in
// which case the flag wins.
func (c *Config) ApplyFile(f *File, set func(flag string) bool) {
	if f == nil {
		return
	}
	c.SiteConfigs = f

	cs := f.Crawl
	if cs.Retries != nil && !set("retries") {
		c.MaxRetries = *cs.Retries
	}
	if cs.RetryDelay != 0 && !set("retry-delay") {
		c.RetryDelay = cs.RetryDelay
	}
	if cs.Backoff != "" && !set("backoff") {
		c.Backoff = cs.Backoff
	}
	if cs.Concurrency != 0 && !set("concurrency") {
		c.Concurrency = cs.Concurrency
	}
	if cs.Timeout != 0 && !set("timeout") {
		c.Timeout = cs.Timeout
	}
	if cs.OutputDir != "" && !set("output-dir") {
		c.OutputDir = cs.OutputDir
	}
	if cs.Digest != "" && !set("digest") {
		c.Digest = cs.Digest
	}
	if cs.MaxBodySize != 0 && !set("max-body-size") {
		c.MaxBodySize = cs.MaxBodySize
	}
	if cs.Proxy != "" && !set("proxy") {
		c.ProxyAddress = cs.Proxy
	}
}
