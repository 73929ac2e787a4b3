package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
)

var (
	newlinePattern   = regexp.MustCompile(`\r\n|\r`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// chunkNamespace seeds deterministic chunk ids so re-ingesting a source
// overwrites its previous records.
var chunkNamespace = uuid.MustParse("6f1d2a3e-5b4c-4e8f-9a7d-2c1b0e9f8a76")

// Processor handles chunking according to supplied configuration.
type Processor struct {
	settings Settings
	splitter textsplitter.RecursiveCharacter
}

// NewProcessor builds a processor with sanitized defaults.
func NewProcessor(settings Settings) (*Processor, error) {
	if settings.Size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	if settings.LenFunc == nil {
		settings.LenFunc = TokenCounter(settings.Encoding)
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(settings.Size),
		textsplitter.WithChunkOverlap(settings.Overlap),
		textsplitter.WithLenFunc(settings.LenFunc),
	)
	return &Processor{settings: settings, splitter: splitter}, nil
}

// Process splits documents into chunks. Chunk ids depend only on the source
// id, the chunk position and its text.
func (p *Processor) Process(docs []Document) ([]Chunk, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{})
	chunks := make([]Chunk, 0, len(docs))
	for di := range docs {
		doc := docs[di]
		if strings.TrimSpace(doc.ID) == "" {
			return nil, fmt.Errorf("chunk: document %d has no id", di)
		}
		text := p.preprocess(doc.Text)
		if text == "" {
			continue
		}
		segments, err := p.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("chunk: split document %s: %w", doc.ID, err)
		}
		idx := 0
		for _, segment := range segments {
			chunkText := strings.TrimSpace(segment)
			if chunkText == "" {
				continue
			}
			hash := hashText(chunkText)
			if p.settings.Deduplicate {
				if _, exists := seen[hash]; exists {
					continue
				}
				seen[hash] = struct{}{}
			}
			metadata := make(map[string]any, len(doc.Metadata)+2)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata[MetaChunkIndex] = idx
			metadata[MetaSourceID] = doc.ID
			chunks = append(chunks, Chunk{
				ID:       ChunkID(doc.ID, idx, hash),
				Text:     chunkText,
				Hash:     hash,
				Metadata: metadata,
			})
			idx++
		}
	}
	return chunks, nil
}

// ChunkID derives a stable UUID for a chunk.
func ChunkID(sourceID string, index int, hash string) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%s#%d#%s", sourceID, index, hash)).String()
}

func (p *Processor) preprocess(text string) string {
	normalized := text
	if p.settings.NormalizeNewlines {
		normalized = newlinePattern.ReplaceAllString(normalized, "\n")
		normalized = blankRunsPattern.ReplaceAllString(normalized, "\n\n")
	}
	return strings.TrimSpace(normalized)
}

func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
