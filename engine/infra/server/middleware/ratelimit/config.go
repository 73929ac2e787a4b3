package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
)

// Config represents rate limiting configuration
type Config struct {
	// Rate applied per client IP.
	GlobalRate RateConfig `yaml:"global_rate"`

	// Options
	Prefix   string `yaml:"prefix"`
	MaxRetry int    `yaml:"max_retry"`

	// Excluded IPs
	ExcludedIPs []string `yaml:"excluded_ips"`
}

// RateConfig represents a single rate limit configuration
type RateConfig struct {
	Period   time.Duration `yaml:"period"`
	Limit    int64         `yaml:"limit"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		GlobalRate: RateConfig{
			Limit:  60,
			Period: 1 * time.Minute,
		},
		Prefix:      "arag:ratelimit:",
		MaxRetry:    3,
		ExcludedIPs: []string{},
	}
}

// ParseRate reads the "<limit>-<period>" notation ("60-M", "5-S", "1000-H").
// An empty value or "off" disables limiting.
func ParseRate(formatted string) (RateConfig, error) {
	formatted = strings.TrimSpace(formatted)
	if formatted == "" || strings.EqualFold(formatted, "off") {
		return RateConfig{Disabled: true}, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return RateConfig{}, fmt.Errorf("invalid rate limit %q: %w", formatted, err)
	}
	return RateConfig{Limit: rate.Limit, Period: rate.Period}, nil
}

// ToLimiterRate converts RateConfig to limiter.Rate
func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GlobalRate.Disabled {
		return nil
	}
	if c.GlobalRate.Limit <= 0 {
		return fmt.Errorf("global rate limit must be positive")
	}
	if c.GlobalRate.Period <= 0 {
		return fmt.Errorf("global rate period must be positive")
	}
	return nil
}
