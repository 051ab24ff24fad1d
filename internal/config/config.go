package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"MF_ENV" default:"development"`

	HTTPPort         int           `envconfig:"MF_HTTP_PORT" default:"8080"`
	HTTPReadTimeout  time.Duration `envconfig:"MF_HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"MF_HTTP_WRITE_TIMEOUT" default:"10m"`

	DownloadDir string `envconfig:"MF_DOWNLOAD_DIR" default:"./downloads"`
	StateFile   string `envconfig:"MF_STATE_FILE" default:""`

	SweepInterval   time.Duration `envconfig:"MF_SWEEP_INTERVAL" default:"30m"`
	RetentionWindow time.Duration `envconfig:"MF_RETENTION_WINDOW" default:"2h"`
	InfoCacheTTL    time.Duration `envconfig:"MF_INFO_CACHE_TTL" default:"10m"`

	ShutdownTimeout time.Duration `envconfig:"MF_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"MF_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"MF_LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive: %s", c.SweepInterval)
	}

	if c.RetentionWindow <= 0 {
		return fmt.Errorf("retention window must be positive: %s", c.RetentionWindow)
	}

	if c.InfoCacheTTL <= 0 {
		return fmt.Errorf("info cache TTL must be positive: %s", c.InfoCacheTTL)
	}

	return nil
}
