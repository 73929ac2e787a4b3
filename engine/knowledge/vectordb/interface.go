package vectordb

import (
	"context"
)

// Provider enumerates supported vector database backends.
type Provider string

const (
	ProviderMemory Provider = "memory"
	// ProviderFilesystem persists embeddings to a local JSON snapshot.
	ProviderFilesystem Provider = "filesystem"
	ProviderPGVector   Provider = "pgvector"
)

// Record represents a chunk persisted to the vector store.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchOptions controls similarity search execution.
type SearchOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]string
}

// Match captures a similarity search result.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

// Filter specifies delete criteria. IDs win over Metadata when both are set.
type Filter struct {
	IDs      []string
	Metadata map[string]string
}

// Store exposes the minimal contract for ingestion and retrieval.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Delete(ctx context.Context, filter Filter) error
	Close(ctx context.Context) error
}

// Counter is implemented by stores that can report how many records they hold.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Config captures normalized connection details for a vector database.
type Config struct {
	Provider  Provider
	DSN       string
	Path      string
	Table     string
	Dimension int
	// EnsureIndex creates an ivfflat cosine index on pgvector tables.
	EnsureIndex bool
}
