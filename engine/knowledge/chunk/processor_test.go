package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func TestProcessor(t *testing.T) {
	settings := Settings{
		Size:              40,
		Overlap:           5,
		Deduplicate:       true,
		NormalizeNewlines: true,
		LenFunc:           runeLen,
	}

	t.Run("Should chunk normalize and deduplicate", func(t *testing.T) {
		processor, err := NewProcessor(settings)
		require.NoError(t, err)
		chunks, err := processor.Process([]Document{
			{
				ID:       "https://example.com/a",
				Text:     "Hello world.\r\n\r\n\r\n\r\nSecond paragraph talks about agents.",
				Metadata: map[string]any{"title": "A"},
			},
			{
				ID:   "https://example.com/b",
				Text: "Hello world.",
			},
		})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Equal(t, "https://example.com/a", chunks[0].Metadata[MetaSourceID])
		assert.Equal(t, 0, chunks[0].Metadata[MetaChunkIndex])
		assert.Equal(t, "A", chunks[0].Metadata["title"])
		assert.Equal(t, hashText(chunks[0].Text), chunks[0].Hash)
		for _, c := range chunks {
			assert.NotContains(t, c.Text, "\r")
			assert.LessOrEqual(t, runeLen(c.Text), 40)
			assert.NotEqual(t, "https://example.com/b", c.Metadata[MetaSourceID], "duplicate chunk kept")
		}
	})

	t.Run("Should produce stable ids", func(t *testing.T) {
		processor, err := NewProcessor(settings)
		require.NoError(t, err)
		doc := []Document{{ID: "src", Text: strings.Repeat("agents plan and remember. ", 10)}}
		first, err := processor.Process(doc)
		require.NoError(t, err)
		second, err := processor.Process(doc)
		require.NoError(t, err)
		require.Equal(t, len(first), len(second))
		ids := make(map[string]struct{})
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
			ids[first[i].ID] = struct{}{}
		}
		assert.Len(t, ids, len(first))
		assert.Equal(t, ChunkID("src", 0, first[0].Hash), first[0].ID)
	})

	t.Run("Should skip blank documents", func(t *testing.T) {
		processor, err := NewProcessor(settings)
		require.NoError(t, err)
		chunks, err := processor.Process([]Document{{ID: "empty", Text: "  \n "}})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Should require document ids", func(t *testing.T) {
		processor, err := NewProcessor(settings)
		require.NoError(t, err)
		_, err = processor.Process([]Document{{Text: "text"}})
		assert.Error(t, err)
	})
}

func TestNewProcessor(t *testing.T) {
	t.Run("Should validate size and overlap", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 0, LenFunc: runeLen})
		assert.Error(t, err)
		_, err = NewProcessor(Settings{Size: 10, Overlap: -1, LenFunc: runeLen})
		assert.Error(t, err)
		_, err = NewProcessor(Settings{Size: 10, Overlap: 10, LenFunc: runeLen})
		assert.Error(t, err)
	})
}

func TestEstimateTokens(t *testing.T) {
	t.Run("Should round up to whole tokens", func(t *testing.T) {
		assert.Equal(t, 0, EstimateTokens(""))
		assert.Equal(t, 1, EstimateTokens("abc"))
		assert.Equal(t, 2, EstimateTokens("abcde"))
	})
}
