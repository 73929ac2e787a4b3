package config

import (
	"time"
)

// Config is the root configuration for arag.
type Config struct {
	App        AppConfig        `koanf:"app"`
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	Grader     GraderConfig     `koanf:"grader"`
	Pipeline   PipelineConfig   `koanf:"pipeline"   validate:"required"`
	Knowledge  KnowledgeConfig  `koanf:"knowledge"  validate:"required"`
	WebSearch  WebSearchConfig  `koanf:"websearch"  validate:"required"`
	Redis      RedisConfig      `koanf:"redis"`
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// AppConfig contains process-wide settings.
type AppConfig struct {
	LogLevel  string `koanf:"log_level"  env:"LOG_LEVEL"`
	LogJSON   bool   `koanf:"log_json"   env:"LOG_JSON"`
	LogSource bool   `koanf:"log_source" env:"LOG_SOURCE"`
}

// LLMConfig configures the model used for routing, grading and generation.
type LLMConfig struct {
	Provider    string          `koanf:"provider"     validate:"required"       env:"LLM_PROVIDER"`
	Model       string          `koanf:"model"        validate:"required"       env:"MODEL_NAME"`
	Temperature float64         `koanf:"temperature"  validate:"min=0,max=2"    env:"MODEL_TEMPERATURE"`
	APIKey      SensitiveString `koanf:"api_key"                                env:"LLM_API_KEY"       sensitive:"true"`
	APIURL      string          `koanf:"api_url"                                env:"LLM_API_URL"`
	Timeout     time.Duration   `koanf:"timeout"                                env:"LLM_TIMEOUT"`
	MaxAttempts int             `koanf:"max_attempts" validate:"min=1,max=10"   env:"LLM_MAX_ATTEMPTS"`
}

// GraderConfig optionally overrides LLMConfig for the classifier and graders.
// Empty fields inherit from LLMConfig.
type GraderConfig struct {
	Provider string          `koanf:"provider" env:"GRADER_PROVIDER"`
	Model    string          `koanf:"model"    env:"GRADER_MODEL"`
	APIKey   SensitiveString `koanf:"api_key"  env:"GRADER_API_KEY"  sensitive:"true"`
	APIURL   string          `koanf:"api_url"  env:"GRADER_API_URL"`
}

// PipelineConfig bounds the question-answering state machine.
type PipelineConfig struct {
	MaxRetries int           `koanf:"max_retries" validate:"min=0,max=10" env:"MAX_RETRIES"`
	RetrievalK int           `koanf:"retrieval_k" validate:"min=1,max=50" env:"RETRIEVAL_K"`
	Timeout    time.Duration `koanf:"timeout"                             env:"PIPELINE_TIMEOUT"`
}

// KnowledgeConfig describes the knowledge base index and how it is built.
type KnowledgeConfig struct {
	VectorStore VectorStoreConfig `koanf:"vector_store"`
	Embedder    EmbedderConfig    `koanf:"embedder"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Sources     SourcesConfig     `koanf:"sources"`
}

type VectorStoreConfig struct {
	Provider string          `koanf:"provider" validate:"oneof=memory filesystem pgvector" env:"VECTOR_STORE_PROVIDER"`
	Path     string          `koanf:"path"                                                 env:"VECTOR_STORE_PATH"`
	DSN      SensitiveString `koanf:"dsn"                                                  env:"VECTOR_STORE_DSN"      sensitive:"true"`
	Table    string          `koanf:"table"                                                env:"VECTOR_STORE_TABLE"`
}

type EmbedderConfig struct {
	Provider  string          `koanf:"provider"   validate:"oneof=google openai ollama hash" env:"EMBEDDER_PROVIDER"`
	Model     string          `koanf:"model"                                                 env:"EMBEDDER_MODEL"`
	APIKey    SensitiveString `koanf:"api_key"                                               env:"EMBEDDER_API_KEY"  sensitive:"true"`
	APIURL    string          `koanf:"api_url"                                               env:"EMBEDDER_API_URL"`
	Dimension int             `koanf:"dimension"  validate:"min=1"                           env:"EMBEDDER_DIMENSION"`
	BatchSize int             `koanf:"batch_size" validate:"min=1"                           env:"EMBEDDER_BATCH_SIZE"`
	CacheSize int             `koanf:"cache_size" validate:"min=0"                           env:"EMBEDDER_CACHE_SIZE"`
}

type ChunkingConfig struct {
	Size     int    `koanf:"size"     validate:"min=1" env:"CHUNK_SIZE"`
	Overlap  int    `koanf:"overlap"  validate:"min=0" env:"CHUNK_OVERLAP"`
	Encoding string `koanf:"encoding"                  env:"CHUNK_ENCODING"`
}

type SourcesConfig struct {
	URLs          []string      `koanf:"urls"           env:"KNOWLEDGE_URLS"`
	Paths         []string      `koanf:"paths"          env:"KNOWLEDGE_PATHS"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout"  env:"KNOWLEDGE_FETCH_TIMEOUT"`
	FetchRetries  int           `koanf:"fetch_retries"  env:"KNOWLEDGE_FETCH_RETRIES"  validate:"min=0"`
	FetchWait     time.Duration `koanf:"fetch_wait"     env:"KNOWLEDGE_FETCH_WAIT"`
	Concurrency   int           `koanf:"concurrency"    env:"KNOWLEDGE_CONCURRENCY"    validate:"min=1"`
	MaxFileSizeMB int           `koanf:"max_file_size"  env:"KNOWLEDGE_MAX_FILE_SIZE"  validate:"min=1"`
}

// WebSearchConfig configures the live web search collaborator.
type WebSearchConfig struct {
	Provider    string          `koanf:"provider"     validate:"oneof=tavily"         env:"WEB_SEARCH_PROVIDER"`
	APIKey      SensitiveString `koanf:"api_key"                                      env:"TAVILY_API_KEY"          sensitive:"true"`
	BaseURL     string          `koanf:"base_url"     validate:"required,url"         env:"WEB_SEARCH_BASE_URL"`
	MaxResults  int             `koanf:"max_results"  validate:"min=1,max=20"         env:"WEB_SEARCH_MAX_RESULTS"`
	SearchDepth string          `koanf:"search_depth" validate:"oneof=basic advanced" env:"WEB_SEARCH_DEPTH"`
	Timeout     time.Duration   `koanf:"timeout"                                      env:"WEB_SEARCH_TIMEOUT"`
	Cache       SearchCache     `koanf:"cache"`
}

type SearchCache struct {
	Backend  string        `koanf:"backend"   validate:"oneof=none memory redis" env:"WEB_SEARCH_CACHE"`
	TTL      time.Duration `koanf:"ttl"                                          env:"WEB_SEARCH_CACHE_TTL"`
	MaxItems int64         `koanf:"max_items" validate:"min=1"                   env:"WEB_SEARCH_CACHE_MAX_ITEMS"`
}

// RedisConfig is used by the shared web search cache.
type RedisConfig struct {
	URL         string          `koanf:"url"          env:"REDIS_URL"`
	Host        string          `koanf:"host"         env:"REDIS_HOST"`
	Port        string          `koanf:"port"         env:"REDIS_PORT"`
	Password    SensitiveString `koanf:"password"     env:"REDIS_PASSWORD"     sensitive:"true"`
	DB          int             `koanf:"db"           env:"REDIS_DB"`
	PingTimeout time.Duration   `koanf:"ping_timeout" env:"REDIS_PING_TIMEOUT"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host      string        `koanf:"host"       validate:"required"        env:"SERVER_HOST"`
	Port      int           `koanf:"port"       validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout   time.Duration `koanf:"timeout"                               env:"SERVER_TIMEOUT"`
	RateLimit string        `koanf:"rate_limit"                            env:"SERVER_RATE_LIMIT"`
}

type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// DefaultKnowledgeURLs are the posts the default knowledge base is built from.
var DefaultKnowledgeURLs = []string{
	"https://lilianweng.github.io/posts/2023-06-23-agent/",
	"https://lilianweng.github.io/posts/2023-03-15-prompt-engineering/",
	"https://lilianweng.github.io/posts/2023-10-25-adv-attack-llm/",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
		},
		LLM: LLMConfig{
			Provider:    "google",
			Model:       "gemini-2.0-flash-lite",
			Temperature: 0,
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
		},
		Pipeline: PipelineConfig{
			MaxRetries: 3,
			RetrievalK: 3,
			Timeout:    2 * time.Minute,
		},
		Knowledge: KnowledgeConfig{
			VectorStore: VectorStoreConfig{
				Provider: "filesystem",
				Path:     ".arag/index.json",
				Table:    "rag_chroma",
			},
			Embedder: EmbedderConfig{
				Provider:  "google",
				Model:     "embedding-001",
				Dimension: 768,
				BatchSize: 32,
				CacheSize: 256,
			},
			Chunking: ChunkingConfig{
				Size:     1000,
				Overlap:  100,
				Encoding: "cl100k_base",
			},
			Sources: SourcesConfig{
				URLs:          append([]string(nil), DefaultKnowledgeURLs...),
				FetchTimeout:  30 * time.Second,
				FetchRetries:  3,
				FetchWait:     5 * time.Second,
				Concurrency:   4,
				MaxFileSizeMB: 4,
			},
		},
		WebSearch: WebSearchConfig{
			Provider:    "tavily",
			BaseURL:     "https://api.tavily.com",
			MaxResults:  3,
			SearchDepth: "basic",
			Timeout:     15 * time.Second,
			Cache: SearchCache{
				Backend:  "memory",
				TTL:      10 * time.Minute,
				MaxItems: 1000,
			},
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        "6379",
			PingTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			Timeout:   2 * time.Minute,
			RateLimit: "60-M",
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
