package retrieval

import (
	"context"
	"time"

	"github.com/cactux/cactux/internal/query"
)

// VectorStore is the interface for vector storage and similarity search
// backends. Match mirrors the match_advanced_data procedure: it returns at
// most matchCount documents whose metadata satisfies the filter, ordered by
// similarity descending.
type VectorStore interface {
	// Upsert inserts documents, replacing any with the same ID.
	Upsert(ctx context.Context, docs []Document) error

	// Match performs similarity search restricted by filter.
	Match(ctx context.Context, embedding []float32, matchCount int, filter query.Filter) ([]Match, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
}

// Document is one searchable knowledge-base entry.
type Document struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"-"`
	CreatedAt time.Time      `json:"-"`
}

// Match is a Document with its similarity to the query attached.
type Match struct {
	Document
	Similarity float32 `json:"similarity"`
}
