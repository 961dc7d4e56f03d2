package retrieval

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is the embedding model the knowledge base was built with.
	DefaultGeminiModel = "text-embedding-004"
	// EmbeddingDimensions is the vector width stored by every backend.
	EmbeddingDimensions = 768

	taskSemanticSimilarity = "SEMANTIC_SIMILARITY"
)

// GeminiProvider embeds text with the Google Generative AI embeddings API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a provider using the Gemini API backend.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Embed returns a 768-dimensional semantic-similarity embedding.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Models.EmbedContent(ctx, p.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             taskSemanticSimilarity,
		OutputDimensionality: genai.Ptr[int32](EmbeddingDimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini embed: empty response")
	}
	return resp.Embeddings[0].Values, nil
}
