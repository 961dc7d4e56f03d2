package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cactux/cactux/internal/api"
	"github.com/cactux/cactux/internal/chat"
	"github.com/cactux/cactux/internal/config"
	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/ollama"
	"github.com/cactux/cactux/internal/proxy"
	"github.com/cactux/cactux/internal/query"
	"github.com/cactux/cactux/internal/retrieval"
	"github.com/cactux/cactux/internal/storage"
	"github.com/cactux/cactux/internal/tools"
	"github.com/cactux/cactux/internal/weather"
)

// appStore is the chat and location store behind either storage driver.
type appStore interface {
	chat.Store
	api.HistoryStore
	weather.CoordinateSource
	UpsertLocation(ctx context.Context, table string, loc storage.Location) error
	Close() error
}

// backends opens collaborators on demand and closes them in reverse order.
type backends struct {
	cfg config.Config
	log *logging.Logger

	store    appStore
	local    *storage.Store
	embedder *retrieval.Embedder
	vectors  retrieval.VectorStore

	closers []func() error
}

func newBackends(cfg config.Config, log *logging.Logger) *backends {
	return &backends{cfg: cfg, log: log}
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.log.Warn().Err(err).Msg("closing backend")
		}
	}
	b.closers = nil
}

// localDB opens the SQLite database under the data dir once.
func (b *backends) localDB() (*storage.Store, error) {
	if b.local != nil {
		return b.local, nil
	}
	s, err := storage.Open(b.cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	b.local = s
	b.closers = append(b.closers, s.Close)
	return s, nil
}

func (b *backends) chatStore(ctx context.Context) (appStore, error) {
	if b.store != nil {
		return b.store, nil
	}
	switch b.cfg.Storage.Driver {
	case config.DriverPostgres:
		pg, err := storage.OpenPostgres(ctx, b.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		b.store = pg
	default:
		s, err := b.localDB()
		if err != nil {
			return nil, err
		}
		b.store = s
	}
	b.log.Info().Str("driver", b.cfg.Storage.Driver).Msg("chat store ready")
	return b.store, nil
}

func (b *backends) embeddings(ctx context.Context) (*retrieval.Embedder, error) {
	if b.embedder != nil {
		return b.embedder, nil
	}
	var p retrieval.Provider
	switch b.cfg.Embedding.Provider {
	case config.ProviderOllama:
		c := ollama.New(b.cfg.Embedding.OllamaBaseURL)
		if err := ollama.EnsureReady(ctx, c, b.cfg.Embedding.OllamaModel, stderr); err != nil {
			return nil, err
		}
		p = retrieval.NewOllamaProvider(c, b.cfg.Embedding.OllamaModel)
	default:
		g, err := retrieval.NewGeminiProvider(ctx, b.cfg.Embedding.GeminiAPIKey, b.cfg.Embedding.Model)
		if err != nil {
			return nil, err
		}
		p = g
	}
	b.embedder = retrieval.NewEmbedder(p)
	return b.embedder, nil
}

func (b *backends) vectorStore(ctx context.Context) (retrieval.VectorStore, error) {
	if b.vectors != nil {
		return b.vectors, nil
	}
	switch b.cfg.Vector.Backend {
	case config.VectorPostgres:
		pg, err := retrieval.OpenPostgresStore(ctx, b.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		b.vectors = pg
	case config.VectorChromem:
		e, err := b.embeddings(ctx)
		if err != nil {
			return nil, err
		}
		cs, err := retrieval.NewChromemStore(filepath.Join(b.cfg.Storage.DataDir, "chromem"), retrieval.EmbeddingFunc(e))
		if err != nil {
			return nil, fmt.Errorf("opening chromem store: %w", err)
		}
		b.vectors = cs
	default:
		s, err := b.localDB()
		if err != nil {
			return nil, err
		}
		b.vectors = retrieval.NewSQLiteStore(s.DB())
	}
	b.log.Info().Str("backend", b.cfg.Vector.Backend).Msg("vector store ready")
	return b.vectors, nil
}

// registry builds the four chat tools over the opened backends.
func (b *backends) registry(ctx context.Context, llm *proxy.Client) (*tools.Registry, error) {
	store, err := b.chatStore(ctx)
	if err != nil {
		return nil, err
	}
	e, err := b.embeddings(ctx)
	if err != nil {
		return nil, err
	}
	vs, err := b.vectorStore(ctx)
	if err != nil {
		return nil, err
	}
	tz, err := time.LoadLocation(b.cfg.Weather.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", b.cfg.Weather.Timezone, err)
	}

	w := b.cfg.Weather
	forecasts := weather.NewService(store, weather.NewClient(w.BaseURL, w.APIKey, w.Units, w.Lang), tz, b.log)
	retriever := retrieval.NewRetriever(e, vs, b.cfg.Vector.MatchCount, b.log)
	builder := query.NewDefaultBuilder()

	return tools.NewRegistry(
		tools.NewWeather(forecasts, b.log),
		tools.NewIdentifyZone(builder.Zones(), tools.NewLLMZoneClassifier(llm, b.cfg.Model.ZoneModel), b.log),
		tools.NewClimbing(builder, retriever, b.log),
		tools.NewAccommodation(builder, retriever, b.log),
	), nil
}
