package cache

import (
	"crypto/tls"
	"time"

	"github.com/compozy/arag/pkg/config"
)

type Config struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
	// TLS Configuration
	TLSEnabled bool
	TLSConfig  *tls.Config
	// Timeout Configuration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
	// KeyPrefix namespaces every key written through the adapter.
	KeyPrefix string
}

// FromAppConfig creates a cache Config from the application configuration.
func FromAppConfig(appConfig *config.Config) *Config {
	r := appConfig.Redis
	return &Config{
		URL:         r.URL,
		Host:        r.Host,
		Port:        r.Port,
		Password:    r.Password.Value(),
		DB:          r.DB,
		PingTimeout: r.PingTimeout,
		KeyPrefix:   "arag:",
	}
}
