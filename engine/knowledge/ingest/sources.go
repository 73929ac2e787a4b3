package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/compozy/arag/engine/knowledge"
	"github.com/compozy/arag/engine/knowledge/chunk"
	"github.com/compozy/arag/pkg/logger"
)

// Document metadata keys written by the loaders.
const (
	MetaSource      = "source"
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaLanguage    = "language"
	MetaContentType = "content_type"
	MetaContentHash = "content_hash"
	MetaChunkHash   = "chunk_hash"
)

const (
	kindURL  = "url"
	kindFile = "file"
)

// Failure records a source that could not be loaded. Failures do not abort
// ingestion of the remaining sources.
type Failure struct {
	Source string
	Err    error
}

type documentList struct {
	items    []chunk.Document
	hash     map[string]struct{}
	failures []Failure
}

func newDocumentList() *documentList {
	return &documentList{hash: make(map[string]struct{})}
}

func (l *documentList) appendDocument(docID, text string, meta map[string]any) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	hash := hashContent(trimmed)
	if _, exists := l.hash[hash]; exists {
		return
	}
	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta[MetaContentHash] = hash
	meta[MetaSource] = docID
	l.hash[hash] = struct{}{}
	l.items = append(l.items, chunk.Document{ID: docID, Text: trimmed, Metadata: meta})
}

func (l *documentList) fail(ctx context.Context, kind, source string, err error) {
	logger.FromContext(ctx).Warn("Knowledge source skipped", "kind", kind, "source", source, "error", err)
	knowledge.RecordIngestFailure(ctx, kind)
	l.failures = append(l.failures, Failure{Source: source, Err: err})
}

// appendRemoteURLs downloads urls concurrently and appends them in input order.
func (l *documentList) appendRemoteURLs(ctx context.Context, f *fetcher, urls []string, limit int) error {
	cleaned := make([]string, 0, len(urls))
	for _, raw := range urls {
		if u := strings.TrimSpace(raw); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	docs := make([]*remoteDocument, len(cleaned))
	errs := make([]error, len(cleaned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range cleaned {
		g.Go(func() error {
			doc, err := f.fetch(gctx, u)
			if err != nil {
				errs[i] = err
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, u := range cleaned {
		if errs[i] != nil {
			l.fail(ctx, kindURL, u, errs[i])
			continue
		}
		doc := docs[i]
		meta := map[string]any{
			MetaContentType: doc.contentType,
		}
		setIfPresent(meta, MetaTitle, doc.page.Title)
		setIfPresent(meta, MetaDescription, doc.page.Description)
		setIfPresent(meta, MetaLanguage, doc.page.Language)
		logger.FromContext(ctx).Debug("Knowledge url loaded", "url", u, "bytes", doc.size)
		knowledge.RecordIngestDocument(ctx, kindURL)
		l.appendDocument(u, doc.page.Text, meta)
	}
	return nil
}

// appendPaths expands glob patterns under root and loads every text file.
func (l *documentList) appendPaths(ctx context.Context, root string, patterns []string, maxBytes int64) error {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if err := l.appendPattern(ctx, root, pattern, maxBytes); err != nil {
			return err
		}
	}
	return nil
}

func (l *documentList) appendPattern(ctx context.Context, root, pattern string, maxBytes int64) error {
	absPattern := pattern
	if !filepath.IsAbs(absPattern) {
		absPattern = filepath.Join(root, pattern)
	}
	matches, err := doublestar.FilepathGlob(filepath.Clean(absPattern))
	if err != nil {
		return fmt.Errorf("knowledge: glob %q failed: %w", pattern, err)
	}
	if len(matches) == 0 {
		logger.FromContext(ctx).Warn("Knowledge ingestion glob returned no files", "pattern", pattern)
		return nil
	}
	for _, abs := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		within, werr := pathInside(root, abs)
		if werr != nil {
			return werr
		}
		if !within {
			return fmt.Errorf("knowledge: glob match %q escapes root %q", abs, root)
		}
		info, serr := os.Stat(abs)
		if serr != nil {
			return fmt.Errorf("knowledge: stat %q: %w", abs, serr)
		}
		if info.IsDir() {
			continue
		}
		rel, rerr := filepath.Rel(root, abs)
		if rerr != nil {
			return fmt.Errorf("knowledge: resolve relative path for %q: %w", abs, rerr)
		}
		docID := filepath.ToSlash(rel)
		pg, contentType, ok, lerr := readLocalFile(abs, maxBytes)
		if lerr != nil {
			l.fail(ctx, kindFile, docID, lerr)
			continue
		}
		if !ok {
			logger.FromContext(ctx).Debug("Knowledge ingestion skipped non-text file", "path", docID, "type", contentType)
			continue
		}
		meta := map[string]any{MetaContentType: contentType}
		setIfPresent(meta, MetaTitle, pg.Title)
		setIfPresent(meta, MetaDescription, pg.Description)
		setIfPresent(meta, MetaLanguage, pg.Language)
		knowledge.RecordIngestDocument(ctx, kindFile)
		l.appendDocument(docID, pg.Text, meta)
	}
	return nil
}

// readLocalFile returns ok=false for files that are not text.
func readLocalFile(path string, maxBytes int64) (page, string, bool, error) {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return page{}, "", false, fmt.Errorf("knowledge: detect type of %q: %w", path, err)
	}
	contentType := detected.String()
	if !isText(detected) {
		return page{}, contentType, false, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return page{}, contentType, false, fmt.Errorf("knowledge: open %q: %w", path, err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return page{}, contentType, false, fmt.Errorf("knowledge: read %q: %w", path, err)
	}
	if int64(len(data)) > maxBytes {
		return page{}, contentType, false, fmt.Errorf(
			"knowledge: file %q exceeds maximum size of %d bytes",
			path,
			maxBytes,
		)
	}
	pg, err := decodePage(data, contentType)
	if err != nil {
		return page{}, contentType, false, fmt.Errorf("knowledge: decode %q: %w", path, err)
	}
	return pg, mediaType(contentType), true, nil
}

func isText(m *mimetype.MIME) bool {
	for current := m; current != nil; current = current.Parent() {
		if current.Is("text/plain") {
			return true
		}
	}
	return false
}

func pathInside(root, target string) (bool, error) {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, fmt.Errorf("knowledge: resolve root %q: %w", root, err)
	}
	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("knowledge: target path does not exist: %s", target)
		}
		return false, fmt.Errorf("knowledge: resolve target %q: %w", target, err)
	}
	rel, err := filepath.Rel(resolvedRoot, resolvedTarget)
	if err != nil {
		return false, fmt.Errorf("knowledge: compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false, nil
	}
	return true, nil
}

func setIfPresent(meta map[string]any, key, value string) {
	if value != "" {
		meta[key] = value
	}
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
