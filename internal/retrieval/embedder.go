package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Provider turns text into an embedding vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder wraps a Provider and adds bounded batch embedding.
type Embedder struct {
	provider Provider
	limit    int
}

// NewEmbedder creates an Embedder over the given provider.
func NewEmbedder(p Provider) *Embedder {
	return &Embedder{provider: p, limit: 4}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently,
// in input order. Returns nil (not error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.provider.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
