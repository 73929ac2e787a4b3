package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// hashClient embeds text by hashing word unigrams and bigrams into a fixed
// number of buckets and normalizing the result.
type hashClient struct {
	dimension int
}

func newHashClient(dimension int) *hashClient {
	return &hashClient{dimension: dimension}
}

func (h *hashClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *hashClient) embed(text string) []float32 {
	vector := make([]float64, h.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, word := range words {
		h.add(vector, word, 1)
		if i > 0 {
			h.add(vector, words[i-1]+" "+word, 0.5)
		}
	}
	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	result := make([]float32, h.dimension)
	if norm == 0 {
		return result
	}
	norm = math.Sqrt(norm)
	for i, v := range vector {
		result[i] = float32(v / norm)
	}
	return result
}

func (h *hashClient) add(vector []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dimension)) // #nosec G115 -- dimension is positive
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vector[idx] += weight
}
