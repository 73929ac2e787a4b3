package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLProvider_Load(t *testing.T) {
	t.Run("Should parse nested YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arag.yaml")
		content := "pipeline:\n  max_retries: 2\nllm:\n  model: gemini-1.5-flash\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		data, err := NewYAMLProvider(path).Load()

		require.NoError(t, err)
		pipeline, ok := data["pipeline"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 2, pipeline["max_retries"])
	})

	t.Run("Should return an empty map for a missing file", func(t *testing.T) {
		data, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Should fail on malformed YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipeline: [unterminated"), 0o600))
		_, err := NewYAMLProvider(path).Load()
		assert.Error(t, err)
	})
}

func TestEnvFileProvider_Load(t *testing.T) {
	t.Run("Should map only known variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("MAX_RETRIES=4\nUNRELATED=1\n"), 0o600))

		data, err := NewEnvFileProvider(path).Load()

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"pipeline": map[string]any{"max_retries": "4"}}, data)
		assert.Equal(t, SourceEnvFile, NewEnvFileProvider(path).Type())
	})
}

func TestCLIProvider_Load(t *testing.T) {
	t.Run("Should expand dotted paths", func(t *testing.T) {
		data, err := NewCLIProvider(map[string]any{"server.port": 9090, "server.host": "127.0.0.1"}).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"server": map[string]any{"port": 9090, "host": "127.0.0.1"}}, data)
	})

	t.Run("Should report conflicting paths", func(t *testing.T) {
		m := map[string]any{"server": "flat"}
		err := setNested(m, "server.port", 1)
		assert.Error(t, err)
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	t.Run("Should include sensitive keys", func(t *testing.T) {
		byEnv := make(map[string]EnvMapping)
		for _, m := range GenerateEnvMappings() {
			byEnv[m.EnvVar] = m
		}
		require.Contains(t, byEnv, "TAVILY_API_KEY")
		assert.Equal(t, "websearch.api_key", byEnv["TAVILY_API_KEY"].ConfigPath)
		assert.True(t, byEnv["TAVILY_API_KEY"].Sensitive)
		assert.Equal(t, "pipeline.max_retries", byEnv["MAX_RETRIES"].ConfigPath)
	})
}
