package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compozy/arag/engine/knowledge"
	"github.com/compozy/arag/engine/knowledge/chunk"
	"github.com/compozy/arag/engine/knowledge/embedder"
	"github.com/compozy/arag/engine/knowledge/vectordb"
	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/pkg/logger"
)

// MetaScore carries the similarity score on returned documents.
const MetaScore = "score"

type TokenEstimator interface {
	EstimateTokens(ctx context.Context, text string) int
}

type runeEstimator struct{}

func (runeEstimator) EstimateTokens(_ context.Context, text string) int {
	return chunk.EstimateTokens(text)
}

// Option configures a Service.
type Option func(*Service)

// WithMinScore drops matches scoring below min.
func WithMinScore(minScore float64) Option {
	return func(s *Service) {
		s.minScore = minScore
	}
}

// WithFilters restricts searches to records whose metadata matches.
func WithFilters(filters map[string]string) Option {
	return func(s *Service) {
		s.filters = filters
	}
}

// WithMaxTokens trims the lowest ranked documents until the total estimate
// fits. Zero disables trimming.
func WithMaxTokens(maxTokens int) Option {
	return func(s *Service) {
		s.maxTokens = maxTokens
	}
}

func WithEstimator(estimator TokenEstimator) Option {
	return func(s *Service) {
		if estimator != nil {
			s.estimator = estimator
		}
	}
}

// WithStoreName labels metrics and spans, usually with the provider name.
func WithStoreName(name string) Option {
	return func(s *Service) {
		s.storeName = name
	}
}

// Service answers similarity queries against the knowledge base. It
// implements pipeline.Retriever.
type Service struct {
	embedder  embedder.Embedder
	store     vectordb.Store
	estimator TokenEstimator
	tracer    trace.Tracer
	storeName string
	minScore  float64
	maxTokens int
	filters   map[string]string
}

var _ pipeline.Retriever = (*Service)(nil)

func NewService(emb embedder.Embedder, store vectordb.Store, opts ...Option) (*Service, error) {
	if emb == nil {
		return nil, errors.New("knowledge: retriever embedder is required")
	}
	if store == nil {
		return nil, errors.New("knowledge: retriever vector store is required")
	}
	s := &Service{
		embedder:  emb,
		store:     store,
		estimator: runeEstimator{},
		tracer:    otel.Tracer("arag.knowledge.retriever"),
		storeName: "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Retrieve returns at most k documents ordered by descending score.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (docs []pipeline.Document, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("knowledge: query is required")
	}
	if k <= 0 {
		k = pipeline.DefaultRetrievalK
	}
	log := logger.FromContext(ctx).With("store", s.storeName)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "arag.knowledge.retriever.retrieve", trace.WithAttributes(
		attribute.String("store", s.storeName),
		attribute.Int("top_k", k),
	))
	defer s.finishRetrieve(ctx, span, start, &docs, &err)

	log.Debug("Knowledge retrieval started", "query_length", len(query), "k", k)
	knowledge.RecordRetrievalAttempt(ctx, s.storeName, "embed")
	vector, err := s.embedQueryWithSpan(ctx, query)
	if err != nil {
		return nil, err
	}
	knowledge.RecordRetrievalAttempt(ctx, s.storeName, "search")
	matches, err := s.searchMatches(ctx, vector, vectordb.SearchOptions{
		TopK:     k,
		MinScore: s.minScore,
		Filters:  s.filters,
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		knowledge.RecordRetrievalEmpty(ctx, s.storeName)
		return []pipeline.Document{}, nil
	}
	sortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return s.buildDocuments(ctx, matches), nil
}

func (s *Service) embedQueryWithSpan(ctx context.Context, query string) ([]float32, error) {
	spanCtx, span := s.tracer.Start(ctx, "arag.knowledge.retriever.embed_query", trace.WithAttributes(
		attribute.Int("embedder_dimension", s.embedder.Dimension()),
	))
	defer span.End()
	vector, err := s.embedder.EmbedQuery(spanCtx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	return vector, nil
}

func (s *Service) searchMatches(
	ctx context.Context,
	vector []float32,
	opts vectordb.SearchOptions,
) ([]vectordb.Match, error) {
	spanCtx, span := s.tracer.Start(ctx, "arag.knowledge.retriever.vector_search", trace.WithAttributes(
		attribute.String("store", s.storeName),
		attribute.Int("top_k", opts.TopK),
	))
	defer span.End()
	matches, err := s.store.Search(spanCtx, vector, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("knowledge: vector search: %w", err)
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return matches, nil
}

func (s *Service) buildDocuments(ctx context.Context, matches []vectordb.Match) []pipeline.Document {
	docs := make([]pipeline.Document, 0, len(matches))
	total := 0
	for i := range matches {
		tokens := s.estimator.EstimateTokens(ctx, matches[i].Text)
		if s.maxTokens > 0 && len(docs) > 0 && total+tokens > s.maxTokens {
			break
		}
		total += tokens
		docs = append(docs, pipeline.NewDocument(matches[i].Text, stringifyMetadata(matches[i])))
	}
	return docs
}

// stringifyMetadata flattens record metadata into the string map documents
// carry and adds the score.
func stringifyMetadata(match vectordb.Match) map[string]string {
	out := make(map[string]string, len(match.Metadata)+1)
	for k, v := range match.Metadata {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case []string:
			out[k] = strings.Join(val, ",")
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	out[MetaScore] = fmt.Sprintf("%.4f", match.Score)
	return out
}

func (s *Service) finishRetrieve(
	ctx context.Context,
	span trace.Span,
	start time.Time,
	docs *[]pipeline.Document,
	runErr *error,
) {
	duration := time.Since(start)
	knowledge.RecordQueryLatency(ctx, s.storeName, duration)
	log := logger.FromContext(ctx).With("store", s.storeName)
	seconds := duration.Seconds()
	if runErr != nil && *runErr != nil {
		err := *runErr
		log.Error("Knowledge retrieval failed", "error", err, "duration_seconds", seconds)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}
	total := 0
	if docs != nil {
		total = len(*docs)
	}
	log.Debug("Knowledge retrieval finished", "results", total, "duration_seconds", seconds)
	span.SetAttributes(attribute.Int("results", total))
	span.End()
}

func sortMatches(matches []vectordb.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}
