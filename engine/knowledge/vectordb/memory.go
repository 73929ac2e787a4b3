package vectordb

import (
	"context"
	"fmt"
	"sync"
)

// memoryStore keeps records in process memory. It backs tests and the
// filesystem store.
type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]Record
}

func newMemoryStore(cfg *Config) *memoryStore {
	return &memoryStore{
		dimension: cfg.Dimension,
		records:   make(map[string]Record),
	}
}

func (s *memoryStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(records)
}

func (s *memoryStore) upsertLocked(records []Record) error {
	for i := range records {
		if len(records[i].Embedding) != s.dimension {
			return fmt.Errorf(
				"vector_store: record %q dimension mismatch (got %d want %d)",
				records[i].ID,
				len(records[i].Embedding),
				s.dimension,
			)
		}
	}
	for i := range records {
		rec := records[i]
		s.records[rec.ID] = Record{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  cloneMetadata(rec.Metadata),
		}
	}
	return nil
}

func (s *memoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("vector_store: query dimension mismatch (got %d want %d)", len(query), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		if !metadataMatches(rec.Metadata, opts.Filters) {
			continue
		}
		score := cosineSimilarity(rec.Embedding, query)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: cloneMetadata(rec.Metadata),
		})
	}
	return rankMatches(candidates, opts.TopK), nil
}

func (s *memoryStore) Delete(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(filter)
	return nil
}

// deleteLocked reports whether anything was removed.
func (s *memoryStore) deleteLocked(filter Filter) bool {
	changed := false
	if len(filter.IDs) > 0 {
		for _, id := range filter.IDs {
			if _, ok := s.records[id]; ok {
				delete(s.records, id)
				changed = true
			}
		}
		return changed
	}
	if len(filter.Metadata) == 0 {
		return false
	}
	for id, rec := range s.records {
		if metadataMatches(rec.Metadata, filter.Metadata) {
			delete(s.records, id)
			changed = true
		}
	}
	return changed
}

func (s *memoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
