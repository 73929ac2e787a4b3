package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/compozy/arag/pkg/logger"
)

// Service loads and validates configuration.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	Sources() map[string]SourceType
}

type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
	sources   map[string]SourceType
	envFiles  []string
	lookupEnv func(string) (string, bool)
}

// Option customizes the loader.
type Option func(*loader)

// WithLookupEnv replaces os.LookupEnv, mostly for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *loader) {
		if fn != nil {
			l.lookupEnv = fn
		}
	}
}

// sensitiveStringDecodeHook is a mapstructure decode hook that converts strings to SensitiveString
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

// NewService creates a new configuration service with validation support.
func NewService(opts ...Option) Service {
	l := &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		sources:   make(map[string]SourceType),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies defaults, then each source in order, then the process
// environment. Later layers win.
func (l *loader) Load(ctx context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	l.sources = make(map[string]SourceType)
	l.envFiles = l.envFiles[:0]
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	l.track(SourceDefault, nil)
	for _, source := range sources {
		if source == nil {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	cfg, err := l.unmarshalAndValidate()
	if err != nil {
		return nil, err
	}
	l.applyProviderKeys(cfg)
	logger.FromContext(ctx).Debug(
		"Configuration loaded",
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"vector_store", cfg.Knowledge.VectorStore.Provider,
		"max_retries", cfg.Pipeline.MaxRetries,
	)
	return cfg, nil
}

func (l *loader) Sources() map[string]SourceType {
	out := make(map[string]SourceType, len(l.sources))
	for k, v := range l.sources {
		out[k] = v
	}
	return out
}

func (l *loader) track(source SourceType, before map[string]any) {
	for _, key := range l.koanf.Keys() {
		prev, existed := before[key]
		if before == nil || !existed || !reflect.DeepEqual(prev, l.koanf.Get(key)) {
			l.sources[key] = source
		}
	}
}

func (l *loader) snapshot() map[string]any {
	keys := l.koanf.Keys()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = l.koanf.Get(key)
	}
	return out
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if ef, ok := source.(*envFileProvider); ok {
		l.envFiles = append(l.envFiles, ef.path)
	}
	if len(data) == 0 {
		return nil
	}
	before := l.snapshot()
	// Merge key by key so a partial YAML document keeps the defaults it omits.
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
	}
	l.track(source.Type(), before)
	return nil
}

func (l *loader) loadEnvironment() error {
	envToPath := GenerateEnvToConfigMap()
	before := l.snapshot()
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			path, ok := envToPath[key]
			if !ok || value == "" {
				return "", nil
			}
			return path, value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	l.track(SourceEnv, before)
	return nil
}

func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		result[key] = v
	}
	return result
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks struct tags and cross-field rules.
func (l *loader) Validate(config *Config) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCustom(config)
}

func validateCustom(config *Config) error {
	chunking := config.Knowledge.Chunking
	if chunking.Overlap >= chunking.Size {
		return fmt.Errorf("knowledge.chunking.overlap (%d) must be smaller than size (%d)", chunking.Overlap, chunking.Size)
	}
	store := config.Knowledge.VectorStore
	if store.Provider == "pgvector" && store.DSN.Value() == "" {
		return errors.New("knowledge.vector_store.dsn is required for pgvector")
	}
	if store.Provider == "filesystem" && strings.TrimSpace(store.Path) == "" {
		return errors.New("knowledge.vector_store.path is required for filesystem")
	}
	if config.WebSearch.Cache.Backend == "redis" &&
		config.Redis.URL == "" && config.Redis.Host == "" {
		return errors.New("redis url or host is required for the redis web search cache")
	}
	if path := config.Monitoring.Path; config.Monitoring.Enabled && (path == "" || path[0] != '/') {
		return fmt.Errorf("monitoring path must start with '/': got %q", path)
	}
	return nil
}
