package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.addr", typ: kString, env: "CACTUX_SERVER_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Server.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Addr },
	},
	{
		key: "server.max_body_bytes", typ: kInt, env: "CACTUX_SERVER_MAX_BODY_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxBodyBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxBodyBytes },
	},
	{
		key: "server.request_timeout", typ: kDuration, env: "CACTUX_SERVER_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Server.RequestTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Server.RequestTimeout },
	},
	{
		key: "server.h2c", typ: kBool, env: "CACTUX_SERVER_H2C",
		apply:   func(cfg *Config, v any) { cfg.Server.H2C = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.H2C },
	},
	{
		key: "server.api_token", typ: kString, env: "CACTUX_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "log.level", typ: kString, env: "CACTUX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "CACTUX_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
	{
		key: "model.base_url", typ: kString, env: "CACTUX_MODEL_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Model.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.BaseURL },
	},
	{
		key: "model.openrouter_api_key", typ: kString, env: "CACTUX_OPENROUTER_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Model.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.OpenRouterAPIKey },
	},
	{
		key: "model.chat", typ: kString, env: "CACTUX_MODEL_CHAT",
		apply:   func(cfg *Config, v any) { cfg.Model.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.ChatModel },
	},
	{
		key: "model.title", typ: kString, env: "CACTUX_MODEL_TITLE",
		apply:   func(cfg *Config, v any) { cfg.Model.TitleModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.TitleModel },
	},
	{
		key: "model.zone", typ: kString, env: "CACTUX_MODEL_ZONE",
		apply:   func(cfg *Config, v any) { cfg.Model.ZoneModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.ZoneModel },
	},
	{
		key: "model.max_steps", typ: kInt, env: "CACTUX_MODEL_MAX_STEPS",
		apply:   func(cfg *Config, v any) { cfg.Model.MaxSteps = v.(int) },
		extract: func(cfg Config) any { return cfg.Model.MaxSteps },
	},
	{
		key: "model.chunk_delay", typ: kDuration, env: "CACTUX_MODEL_CHUNK_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Model.ChunkDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Model.ChunkDelay },
	},
	{
		key: "embedding.provider", typ: kString, env: "CACTUX_EMBEDDING_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.Provider },
	},
	{
		key: "embedding.model", typ: kString, env: "CACTUX_EMBEDDING_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.Model },
	},
	{
		key: "embedding.gemini_api_key", typ: kString, env: "CACTUX_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Embedding.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.GeminiAPIKey },
	},
	{
		key: "embedding.ollama_base_url", typ: kString, env: "CACTUX_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Embedding.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.OllamaBaseURL },
	},
	{
		key: "embedding.ollama_model", typ: kString, env: "CACTUX_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Embedding.OllamaModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.OllamaModel },
	},
	{
		key: "storage.driver", typ: kString, env: "CACTUX_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CACTUX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.postgres_dsn", typ: kString, env: "CACTUX_POSTGRES_DSN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Storage.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PostgresDSN },
	},
	{
		key: "vector.backend", typ: kString, env: "CACTUX_VECTOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Vector.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Vector.Backend },
	},
	{
		key: "vector.match_count", typ: kInt, env: "CACTUX_VECTOR_MATCH_COUNT",
		apply:   func(cfg *Config, v any) { cfg.Vector.MatchCount = v.(int) },
		extract: func(cfg Config) any { return cfg.Vector.MatchCount },
	},
	{
		key: "weather.base_url", typ: kString, env: "CACTUX_WEATHER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Weather.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Weather.BaseURL },
	},
	{
		key: "weather.openweather_api_key", typ: kString, env: "CACTUX_OPENWEATHER_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Weather.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Weather.APIKey },
	},
	{
		key: "weather.units", typ: kString, env: "CACTUX_WEATHER_UNITS",
		apply:   func(cfg *Config, v any) { cfg.Weather.Units = v.(string) },
		extract: func(cfg Config) any { return cfg.Weather.Units },
	},
	{
		key: "weather.lang", typ: kString, env: "CACTUX_WEATHER_LANG",
		apply:   func(cfg *Config, v any) { cfg.Weather.Lang = v.(string) },
		extract: func(cfg Config) any { return cfg.Weather.Lang },
	},
	{
		key: "weather.timezone", typ: kString, env: "CACTUX_WEATHER_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Weather.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Weather.Timezone },
	},
}

// parseValue converts a raw string for a key of type t.
func parseValue(t keyType, raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" || s.secret {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
