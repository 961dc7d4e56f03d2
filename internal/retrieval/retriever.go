package retrieval

import (
	"context"
	"fmt"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/query"
)

// DefaultMatchCount is the number of documents returned per search.
const DefaultMatchCount = 10

// Retriever combines embedding and vector search to find relevant documents.
type Retriever struct {
	embedder   *Embedder
	store      VectorStore
	matchCount int
	log        *logging.Logger
}

// NewRetriever creates a Retriever. A non-positive matchCount uses
// DefaultMatchCount.
func NewRetriever(embedder *Embedder, store VectorStore, matchCount int, log *logging.Logger) *Retriever {
	if matchCount <= 0 {
		matchCount = DefaultMatchCount
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Retriever{embedder: embedder, store: store, matchCount: matchCount, log: log.Sub("retrieval")}
}

// Match embeds text and returns the most similar documents passing filter.
func (r *Retriever) Match(ctx context.Context, text string, filter query.Filter) ([]Match, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.store.Match(ctx, vec, r.matchCount, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	r.log.Debug().Str("query", text).Interface("filter", filter.Map()).Int("count", len(matches)).Msg("documents matched")
	return matches, nil
}
