package ask

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/engine/pipeline"
)

func TestRouteLabel(t *testing.T) {
	t.Run("Should label knowledge base answers", func(t *testing.T) {
		assert.Equal(t, "RAG (knowledge base)", RouteLabel(pipeline.NewState("q")))
	})
	t.Run("Should label web answers", func(t *testing.T) {
		state := pipeline.NewState("q")
		state.WebSearch = true
		assert.Equal(t, "Web search", RouteLabel(state))
	})
}

func TestSourceList(t *testing.T) {
	t.Run("Should list knowledge base sources and web URLs once", func(t *testing.T) {
		state := pipeline.NewState("q")
		state.Documents = []pipeline.Document{
			pipeline.NewDocument("a", map[string]string{pipeline.MetaSource: "notes.md"}),
			pipeline.NewDocument("b", map[string]string{pipeline.MetaSource: "notes.md"}),
			pipeline.NewDocument("c", map[string]string{
				pipeline.MetaSource: pipeline.SourceWebSearch,
				pipeline.MetaURLs:   "https://a.example, https://b.example",
			}),
		}
		assert.Equal(t, []string{"notes.md", "https://a.example", "https://b.example"}, sourceList(state))
	})
	t.Run("Should return nothing without documents", func(t *testing.T) {
		assert.Empty(t, sourceList(pipeline.NewState("q")))
	})
}

func TestRenderState(t *testing.T) {
	state := pipeline.NewState("What is agent memory?")
	state.Generation = "Memory keeps observations."
	state.Tries = 2
	state.LowConfidence = true
	state.Documents = []pipeline.Document{
		pipeline.NewDocument("a", map[string]string{pipeline.MetaSource: "notes.md"}),
	}

	t.Run("Should render the answer with its provenance", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderState(&buf, state, false))
		out := buf.String()
		assert.Contains(t, out, "What is agent memory?")
		assert.Contains(t, out, "Memory keeps observations.")
		assert.Contains(t, out, "RAG (knowledge base)")
		assert.Contains(t, out, "2 attempts")
		assert.Contains(t, out, "could not be verified")
		assert.Contains(t, out, "- notes.md")
		assert.NotContains(t, out, "Pipeline state")
	})

	t.Run("Should append the state in debug mode", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderState(&buf, state, true))
		out := buf.String()
		marker := strings.Index(out, "Pipeline state:")
		require.GreaterOrEqual(t, marker, 0)
		start := marker + strings.Index(out[marker:], "{")
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out[start:]), &decoded))
		assert.Equal(t, state.RunID, decoded["run_id"])
		assert.Equal(t, true, decoded["low_confidence"])
	})
}

func TestFailureError(t *testing.T) {
	t.Run("Should carry the audit fields of a failed run", func(t *testing.T) {
		state := pipeline.NewState("q")
		state.WebSearch = true
		state.Tries = 2
		cause := &pipeline.Error{Kind: pipeline.GenerationFailure, Err: errors.New("model down")}

		err := failureError(state, cause)

		var cliErr *helpers.CliError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, "GENERATION_FAILED", cliErr.Code)
		assert.Contains(t, cliErr.Message, "model down")
		assert.Equal(t, state.RunID, cliErr.Context["run_id"])
		assert.Equal(t, "knowledge_base", cliErr.Context["route"])
		assert.Equal(t, true, cliErr.Context["web_search"])
		assert.Equal(t, 2, cliErr.Context["tries"])
	})

	t.Run("Should pass other errors through", func(t *testing.T) {
		cause := errors.New("store closed")
		assert.Equal(t, cause, failureError(pipeline.NewState("q"), cause))
		assert.Equal(t, cause, failureError(nil, cause))
	})
}
