package sheetfeed

import (
	"net/http"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the root of the spreadsheets feed service.
	DefaultBaseURL = "https://spreadsheets.google.com/feeds"

	defaultGDataVersion    = "3"
	defaultMaxBatchRetries = 3
)

// Config represents configuration for the feed service client
type Config struct {
	ApplicationName string       // Sent as User-Agent
	BaseURL         string       // Feed root (default: DefaultBaseURL)
	GDataVersion    string       // Protocol version header (default: "3")
	HTTPClient      *http.Client // Transport (default: http.DefaultClient)
	Logger          *zap.Logger  // Structured logger (default: no-op)
	MaxBatchRetries int          // Retries after a partially failed bulk population (default: 3)
}

// DefaultConfig returns the recommended default configuration
func DefaultConfig() *Config {
	return &Config{
		ApplicationName: "go-sheetfeed",
		BaseURL:         DefaultBaseURL,
		GDataVersion:    defaultGDataVersion,
		MaxBatchRetries: defaultMaxBatchRetries,
	}
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.GDataVersion == "" {
		c.GDataVersion = defaultGDataVersion
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.MaxBatchRetries <= 0 {
		c.MaxBatchRetries = defaultMaxBatchRetries
	}
	return c
}
