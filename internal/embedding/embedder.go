package embedding

import (
	"context"
	"sync"

	"multimodal-rag/internal/domain"
)

// Locked serializes every call into e. Use it for engines that are loaded
// once per process but are not reentrant.
func Locked(e domain.TextEmbedder) domain.TextEmbedder {
	if _, ok := e.(*locked); ok {
		return e
	}
	return &locked{inner: e}
}

type locked struct {
	mu    sync.Mutex
	inner domain.TextEmbedder
}

func (l *locked) Name() string { return l.inner.Name() }

func (l *locked) Dimension() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Dimension()
}

func (l *locked) Embed(ctx context.Context, text string) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Embed(ctx, text)
}

func (l *locked) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.EmbedBatch(ctx, texts)
}
