package retrieval

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/cactux/cactux/internal/query"
)

var _ VectorStore = (*ChromemStore)(nil)

const (
	chromemCollection = "cactux_documents"
	chromemTitleKey   = "title"
	chromemSummaryKey = "summary"
	chromemMetaKey    = "meta"

	// chromemOverfetch widens the candidate set before metadata filtering.
	chromemOverfetch = 8
)

// ChromemStore keeps documents in an in-process chromem-go collection,
// optionally persisted to a directory.
type ChromemStore struct {
	mu  sync.RWMutex
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromemStore opens the store. An empty path keeps everything in memory.
// embed is only called for documents added without an embedding.
func NewChromemStore(path string, embed chromem.EmbeddingFunc) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	col, err := db.GetOrCreateCollection(chromemCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}
	return &ChromemStore{db: db, col: col}, nil
}

// EmbeddingFunc adapts an Embedder to chromem's embedding callback.
func EmbeddingFunc(e *Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text)
	}
}

func (s *ChromemStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	out := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		meta, err := marshalMetadata(d.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", d.ID, err)
		}
		out = append(out, chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: d.Embedding,
			Metadata: map[string]string{
				chromemTitleKey:   d.Title,
				chromemSummaryKey: d.Summary,
				chromemMetaKey:    meta,
			},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.AddDocuments(ctx, out, 4); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Match queries the collection and filters metadata in process. chromem can
// only filter on exact string equality, which cannot express list overlap or
// case folding. A filtered query first ranks an overfetched page and falls
// back to ranking the whole collection when the page holds too few matches.
func (s *ChromemStore) Match(ctx context.Context, vector []float32, matchCount int, filter query.Filter) ([]Match, error) {
	if matchCount <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.col.Count()
	if total == 0 {
		return nil, nil
	}
	n := min(matchCount, total)
	if !filter.IsEmpty() {
		n = min(matchCount*chromemOverfetch, total)
	}

	for {
		matches, err := s.query(ctx, vector, n, matchCount, filter)
		if err != nil {
			return nil, err
		}
		if len(matches) == matchCount || n == total {
			return matches, nil
		}
		n = total
	}
}

// query ranks the n nearest documents and keeps up to matchCount of those
// passing the filter.
func (s *ChromemStore) query(ctx context.Context, vector []float32, n, matchCount int, filter query.Filter) ([]Match, error) {
	results, err := s.col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	matches := make([]Match, 0, matchCount)
	for _, r := range results {
		meta, err := unmarshalMetadata(r.Metadata[chromemMetaKey])
		if err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
		}
		if !matchesFilter(meta, filter) {
			continue
		}
		matches = append(matches, Match{
			Document: Document{
				ID:        r.ID,
				Title:     r.Metadata[chromemTitleKey],
				Summary:   r.Metadata[chromemSummaryKey],
				Content:   r.Content,
				Metadata:  meta,
				Embedding: r.Embedding,
			},
			Similarity: r.Similarity,
		})
		if len(matches) == matchCount {
			break
		}
	}
	sortBySimilarity(matches)
	return matches, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count(), nil
}
