package retrieval

import (
	"context"

	"github.com/cactux/cactux/internal/ollama"
)

// OllamaProvider embeds text with a model served by a local Ollama.
type OllamaProvider struct {
	client *ollama.Client
	model  string
}

// NewOllamaProvider creates a provider for the given client and model.
func NewOllamaProvider(c *ollama.Client, model string) *OllamaProvider {
	return &OllamaProvider{client: c, model: model}
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.client.Embed(ctx, p.model, text)
}
