package transfer

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	// Connection
	BaseURL string // Server base URL, e.g. http://localhost:8080
	Path    string // Recognition path
	Field   string // Multipart field carrying the image

	// Timeout bounds a single upload. Zero means no timeout.
	Timeout time.Duration

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the server base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithPath sets the recognition path.
func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

// WithField sets the multipart field name.
func WithField(name string) Option {
	return func(c *Config) { c.Field = name }
}

// WithTimeout sets the per-upload timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the defaults matching the recognition server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8080",
		Path:    "/api/ocr",
		Field:   "image",
		Timeout: 60 * time.Second,
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
