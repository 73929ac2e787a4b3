package embedder

// Provider identifies an embedding backend.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	// ProviderHash is an offline feature-hashing embedder. It needs no
	// credentials and is deterministic, which makes it the test backend.
	ProviderHash Provider = "hash"
)

// Config describes how to build an Adapter.
type Config struct {
	Provider      Provider
	Model         string
	APIKey        string
	APIURL        string
	Dimension     int
	BatchSize     int
	StripNewLines bool
	// CacheSize enables an LRU query cache when greater than zero.
	CacheSize int
}
