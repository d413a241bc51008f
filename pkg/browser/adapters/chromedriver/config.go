// Package chromedriver adapts the browser ports to a chromedriver process
// speaking the W3C WebDriver protocol over local HTTP.
package chromedriver

import (
	"errors"
	"strings"
	"time"
)

// Config controls how the adapter launches chromedriver.
type Config struct {
	ChromedriverPath string
	// Port for the chromedriver HTTP endpoint. Zero picks a free port.
	Port             int
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		ChromedriverPath: "chromedriver",
		ConnectTimeout:   10 * time.Second,
		OperationTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ChromedriverPath) != "" {
		defaults.ChromedriverPath = c.ChromedriverPath
	}
	if c.Port != 0 {
		defaults.Port = c.Port
	}
	if c.ConnectTimeout != 0 {
		defaults.ConnectTimeout = c.ConnectTimeout
	}
	if c.OperationTimeout != 0 {
		defaults.OperationTimeout = c.OperationTimeout
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ChromedriverPath) == "" {
		return errors.New("chromedriver_path is required")
	}
	if c.Port < 0 {
		return errors.New("port must not be negative")
	}
	return nil
}
