// Package generation asks a language model to answer a query from
// retrieved context only.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"multimodal-rag/internal/metrics"
)

// FallbackAnswer is the phrase the model is told to use when the context
// does not answer the query. It is also returned as-is for empty context.
const FallbackAnswer = "The provided research context does not contain information on this topic."

// Completion is one model response. BlockReason is set when the service
// reports why it produced no text.
type Completion struct {
	Text        string
	BlockReason mo.Option[string]
}

// Completer sends a single prompt to a generative model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Generator turns context and a query into an answer string.
type Generator struct {
	completer Completer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Generator) { g.metrics = m } }

// New creates a generator backed by completer.
func New(completer Completer, opts ...Option) *Generator {
	g := &Generator{completer: completer, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate makes one model call and returns its text. It never fails:
// an empty response or a call error comes back as a descriptive string.
// Empty context skips the call and returns FallbackAnswer.
func (g *Generator) Generate(ctx context.Context, contextText, query string) string {
	if strings.TrimSpace(contextText) == "" {
		g.metrics.RecordGeneration("fallback")
		return FallbackAnswer
	}
	c, err := g.completer.Complete(ctx, BuildPrompt(contextText, query))
	if err != nil {
		g.logger.Error("generation failed", "error", err)
		g.metrics.RecordGeneration("error")
		return fmt.Sprintf("Error calling the language model: %v", err)
	}
	if strings.TrimSpace(c.Text) != "" {
		g.metrics.RecordGeneration("answered")
		return c.Text
	}
	if reason, ok := c.BlockReason.Get(); ok && reason != "" {
		g.logger.Warn("generation blocked", "reason", reason)
		g.metrics.RecordGeneration("blocked")
		return fmt.Sprintf("Error: the language model did not return text. Blocked due to: %s", reason)
	}
	g.metrics.RecordGeneration("empty")
	return "Error: the language model did not return text. No text returned."
}

// BuildPrompt lays out the instructions, the context and the literal query.
func BuildPrompt(contextText, query string) string {
	var b strings.Builder
	b.WriteString("You are a research assistant. Answer the user query using only facts from the research context below. ")
	b.WriteString("Be precise and keep the exact terminology of the source; refer to equations, figures or tables where they support the answer. ")
	b.WriteString("Do not add information that is not in the context. If the query uses slightly different terms, map them to the closest terms in the context without changing their meaning. ")
	b.WriteString("If only part of the answer is available, say what is missing. ")
	b.WriteString("If the context does not contain the answer, reply exactly: ")
	b.WriteString(FallbackAnswer)
	b.WriteString("\n\n--- Research Context ---\n")
	b.WriteString(contextText)
	b.WriteString("\n--- End of Context ---\n\n--- User Query ---\n")
	b.WriteString(query)
	b.WriteString("\n--- End of Query ---\n\nAnswer:\n")
	return b.String()
}
