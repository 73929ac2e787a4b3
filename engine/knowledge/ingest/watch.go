package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/compozy/arag/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watch re-runs ingestion of the path sources whenever a matching file is
// written, created, removed or renamed. URLs are not refetched. It blocks
// until ctx is done. onRun, when set, receives the outcome of each run.
func (p *Pipeline) Watch(
	ctx context.Context,
	paths []string,
	debounce time.Duration,
	onRun func(*Result, error),
) error {
	log := logger.FromContext(ctx)
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	patterns := p.absolutePatterns(paths)
	if len(patterns) == 0 {
		return fmt.Errorf("knowledge: watch requires at least one path pattern")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	dirs, err := watchDirectories(patterns)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Warn("Failed to watch directory", "path", dir, "error", err)
		}
	}
	log.Info("Knowledge watcher initialized", "patterns", len(patterns), "watched_directories", len(dirs))

	runs := make(chan struct{}, 1)
	var timer *time.Timer
	var mu sync.Mutex
	trigger := func() {
		select {
		case runs <- struct{}{}:
		default:
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("Context canceled, stopping knowledge watcher")
			return nil
		case <-runs:
			result, runErr := p.Run(ctx, Sources{Paths: paths})
			if runErr != nil {
				log.Error("Knowledge re-ingestion failed", "error", runErr)
			}
			if onRun != nil {
				onRun(result, runErr)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						log.Warn("Failed to watch directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !relevantEvent(event) || !matchesAny(patterns, event.Name) {
				continue
			}
			log.Debug("Detected knowledge source change, debouncing", "file", event.Name, "op", event.Op.String())
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, trigger)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

func (p *Pipeline) absolutePatterns(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, pattern := range paths {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(p.root, pattern)
		}
		out = append(out, filepath.Clean(pattern))
	}
	return out
}

func relevantEvent(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename)
}

func matchesAny(patterns []string, name string) bool {
	name = filepath.Clean(name)
	for _, pattern := range patterns {
		if ok, err := doublestar.PathMatch(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// watchDirectories returns the static base directory of every pattern plus
// all directories below it.
func watchDirectories(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var dirs []string
	for _, pattern := range patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		info, err := os.Stat(base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("knowledge: stat watch root %q: %w", base, err)
		}
		if !info.IsDir() {
			base = filepath.Dir(base)
		}
		err = filepath.WalkDir(base, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.IsDir() {
				return nil
			}
			if _, ok := seen[path]; !ok {
				seen[path] = struct{}{}
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("knowledge: walk %q: %w", base, err)
		}
	}
	return dirs, nil
}
