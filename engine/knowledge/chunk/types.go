package chunk

// Document represents raw content prior to chunking.
type Document struct {
	// ID identifies the source, usually its URL or path.
	ID       string
	Text     string
	Metadata map[string]any
}

// Settings configures chunking and preprocessing behavior. Size and Overlap
// are measured in tokens of Encoding.
type Settings struct {
	Size              int
	Overlap           int
	Encoding          string
	Deduplicate       bool
	NormalizeNewlines bool
	// LenFunc overrides token counting.
	LenFunc func(string) int
}

// Chunk represents a processed slice ready for embedding.
type Chunk struct {
	ID       string
	Text     string
	Hash     string
	Metadata map[string]any
}

// Metadata keys added to every chunk.
const (
	MetaChunkIndex = "chunk_index"
	MetaSourceID   = "source_id"
)
