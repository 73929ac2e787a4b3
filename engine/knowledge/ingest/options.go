package ingest

import (
	"time"

	"github.com/compozy/arag/engine/knowledge/chunk"
)

// Strategy defines how ingestion should write records into the vector store.
type Strategy string

const (
	StrategyUpsert  Strategy = "upsert"
	StrategyReplace Strategy = "replace"
)

const (
	defaultBatchSize    = 32
	defaultConcurrency  = 4
	defaultMaxFileBytes = 4 * 1024 * 1024
	defaultUserAgent    = "arag-ingest/1.0"
	defaultFetchWait    = 100 * time.Millisecond
)

// Options controls ingestion execution details provided by callers.
type Options struct {
	Strategy Strategy
	// Root bounds local path sources. Globs resolving outside it are rejected.
	// Empty means the current working directory.
	Root string
}

func (o *Options) normalizedStrategy() Strategy {
	if o == nil || o.Strategy == "" {
		return StrategyUpsert
	}
	return o.Strategy
}

// Sources lists what to ingest.
type Sources struct {
	URLs  []string
	Paths []string
}

func (s Sources) empty() bool {
	return len(s.URLs) == 0 && len(s.Paths) == 0
}

// FetchConfig tunes how remote sources are downloaded.
type FetchConfig struct {
	Timeout   time.Duration
	Retries   int
	Wait      time.Duration
	MaxBytes  int64
	UserAgent string
}

// Config assembles everything a Pipeline needs besides its collaborators.
type Config struct {
	Chunking    chunk.Settings
	BatchSize   int
	Concurrency int
	// MaxFileBytes caps local files; remote bodies use Fetch.MaxBytes.
	MaxFileBytes int64
	Fetch        FetchConfig
	Retry        RetryConfig
}

// RetryConfig bounds embedding and persistence retries.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
	Max      time.Duration
}

func (c *Config) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = defaultMaxFileBytes
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = c.MaxFileBytes
	}
	if c.Fetch.Wait <= 0 {
		c.Fetch.Wait = defaultFetchWait
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = 200 * time.Millisecond
	}
	if c.Retry.Max < c.Retry.Backoff {
		c.Retry.Max = 2 * time.Second
		if c.Retry.Max < c.Retry.Backoff {
			c.Retry.Max = c.Retry.Backoff
		}
	}
}
