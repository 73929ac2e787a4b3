package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchHelpers(t *testing.T) {
	t.Run("Should match files against recursive patterns", func(t *testing.T) {
		patterns := []string{"/kb/docs/**/*.md"}
		assert.True(t, matchesAny(patterns, "/kb/docs/a.md"))
		assert.True(t, matchesAny(patterns, "/kb/docs/deep/er/b.md"))
		assert.False(t, matchesAny(patterns, "/kb/docs/a.txt"))
		assert.False(t, matchesAny(patterns, "/kb/other/a.md"))
	})

	t.Run("Should collect the pattern base and its subdirectories", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "docs", "a.md"), "a")
		writeFile(t, filepath.Join(root, "docs", "sub", "b.md"), "b")
		dirs, err := watchDirectories([]string{filepath.Join(root, "docs", "**", "*.md")})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{filepath.Join(root, "docs"), filepath.Join(root, "docs", "sub")}, dirs)
	})

	t.Run("Should ignore missing bases", func(t *testing.T) {
		dirs, err := watchDirectories([]string{filepath.Join(t.TempDir(), "missing", "*.md")})
		require.NoError(t, err)
		assert.Empty(t, dirs)
	})
}

func TestPipelineWatch(t *testing.T) {
	t.Run("Should re-ingest after a file changes", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "kb", "notes.md")
		writeFile(t, path, "initial notes")
		store := newMemoryStore(t)
		p, err := NewPipeline(newHashEmbedder(t), store, testConfig(), Options{Root: root})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runs := make(chan *Result, 8)
		done := make(chan error, 1)
		go func() {
			done <- p.Watch(ctx, []string{"kb/*.md"}, 20*time.Millisecond, func(res *Result, err error) {
				if err != nil {
					return
				}
				select {
				case runs <- res:
				default:
				}
			})
		}()

		deadline := time.After(5 * time.Second)
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		var res *Result
		for i := 0; res == nil; i++ {
			select {
			case res = <-runs:
			case <-tick.C:
				writeFile(t, path, fmt.Sprintf("updated notes %d", i))
			case <-deadline:
				t.Fatal("watcher did not re-ingest the changed file")
			}
		}
		assert.Equal(t, 1, res.Documents)
		assert.Positive(t, countRecords(t, store))

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	})

	t.Run("Should require a pattern", func(t *testing.T) {
		p, err := NewPipeline(newHashEmbedder(t), newMemoryStore(t), testConfig(), Options{Root: t.TempDir()})
		require.NoError(t, err)
		err = p.Watch(context.Background(), []string{" "}, 0, nil)
		require.Error(t, err)
	})
}
