package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const defaultTopK = 3

var (
	errMissingProvider  = errors.New("vector_store provider is required")
	errMissingDSN       = errors.New("vector_store dsn is required")
	errMissingPath      = errors.New("vector_store path is required")
	errInvalidDimension = errors.New("vector_store dimension must be greater than zero")
	ErrCountUnsupported = errors.New("vector_store does not support counting")
)

// New instantiates an instrumented vector store backed by the requested provider.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	store, err := instantiateStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Instrument(store, cfg.Provider), nil
}

func instantiateStore(ctx context.Context, cfg *Config) (Store, error) {
	switch cfg.Provider {
	case ProviderMemory:
		return newMemoryStore(cfg), nil
	case ProviderFilesystem:
		return newFileStore(cfg)
	case ProviderPGVector:
		return newPGStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("vector_store: provider %q is not supported", cfg.Provider)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vector_store config is required")
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return errMissingProvider
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Path = strings.TrimSpace(cfg.Path)
	switch cfg.Provider {
	case ProviderPGVector:
		if cfg.DSN == "" {
			return errMissingDSN
		}
	case ProviderFilesystem:
		if cfg.Path == "" {
			return errMissingPath
		}
	}
	if cfg.Dimension <= 0 {
		return errInvalidDimension
	}
	return nil
}
