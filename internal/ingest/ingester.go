package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/retrieval"
)

// DefaultBatchSize is the number of documents embedded and written at once.
const DefaultBatchSize = 32

// BatchEmbedder generates embeddings for several texts, keeping order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentWriter persists embedded documents.
type DocumentWriter interface {
	Upsert(ctx context.Context, docs []retrieval.Document) error
}

// Ingester embeds documents and upserts them in batches.
type Ingester struct {
	embedder  BatchEmbedder
	store     DocumentWriter
	batchSize int
	log       *logging.Logger
}

// NewIngester creates an Ingester. batchSize <= 0 selects DefaultBatchSize.
func NewIngester(e BatchEmbedder, store DocumentWriter, batchSize int, log *logging.Logger) *Ingester {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Ingester{embedder: e, store: store, batchSize: batchSize, log: log.Sub("ingest")}
}

// Ingest writes docs and returns how many were stored. Documents without an
// id get a random UUID. A failing batch stops the run; earlier batches stay
// written.
func (in *Ingester) Ingest(ctx context.Context, docs []retrieval.Document) (int, error) {
	stored := 0
	for start := 0; start < len(docs); start += in.batchSize {
		end := min(start+in.batchSize, len(docs))
		batch := make([]retrieval.Document, end-start)
		copy(batch, docs[start:end])

		texts := make([]string, len(batch))
		now := time.Now().UTC()
		for i := range batch {
			if batch[i].ID == "" {
				batch[i].ID = uuid.NewString()
			}
			if batch[i].CreatedAt.IsZero() {
				batch[i].CreatedAt = now
			}
			texts[i] = EmbeddingText(batch[i])
		}

		vecs, err := in.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}
		if err := in.store.Upsert(ctx, batch); err != nil {
			return stored, fmt.Errorf("storing batch at %d: %w", start, err)
		}
		stored += len(batch)
		in.log.Debug().Int("stored", stored).Int("total", len(docs)).Msg("batch written")
	}
	in.log.Info().Int("documents", stored).Msg("ingest complete")
	return stored, nil
}

// EmbeddingText is the text a document is embedded under: its title,
// summary and content joined by blank lines, skipping empty fields.
func EmbeddingText(d retrieval.Document) string {
	var parts []string
	for _, s := range []string{d.Title, d.Summary, d.Content} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
