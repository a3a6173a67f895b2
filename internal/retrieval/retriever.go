// Package retrieval embeds queries, ranks stored material and assembles the
// context handed to the answer generator.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/metrics"
)

const (
	DefaultThreshold = 0.75
	DefaultTopK      = 5
)

// Retriever runs the query side of the pipeline.
type Retriever struct {
	embedder  domain.TextEmbedder
	store     domain.VectorStore
	threshold float64
	topK      int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithThreshold sets the minimum similarity of a match.
func WithThreshold(t float64) Option { return func(r *Retriever) { r.threshold = t } }

// WithTopK caps the number of matches. Non-positive values keep the default.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(r *Retriever) { r.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Retriever) { r.metrics = m } }

// New creates a retriever over store using embedder for queries.
func New(embedder domain.TextEmbedder, store domain.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:  embedder,
		store:     store,
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds query and returns the ranked matches with their context.
// No match is a valid, empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string) (domain.Retrieval, error) {
	return r.RetrieveTopK(ctx, query, r.topK)
}

// RetrieveTopK is Retrieve with a per-call cap.
func (r *Retriever) RetrieveTopK(ctx context.Context, query string, topK int) (domain.Retrieval, error) {
	if topK <= 0 {
		topK = r.topK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.metrics.RecordEmbeddingFailure("text")
		return domain.Retrieval{}, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.store.Search(ctx, vec, r.threshold, topK)
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("search: %w", err)
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	r.metrics.RecordRetrieval(len(matches))
	r.logger.Debug("retrieved", "query", query, "matches", len(matches), "threshold", r.threshold, "top_k", topK)
	return domain.Retrieval{Query: query, Matches: matches, Context: AssembleContext(matches)}, nil
}

// AssembleContext renders matches in rank order as "label: content" blocks
// separated by blank lines.
func AssembleContext(matches []domain.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Label + ": " + m.Content
	}
	return strings.Join(parts, "\n\n")
}
