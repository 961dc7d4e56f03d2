package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Model     ModelConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Vector    VectorConfig
	Weather   WeatherConfig
}

type ServerConfig struct {
	Addr           string
	MaxBodyBytes   int
	RequestTimeout time.Duration
	H2C            bool
	APIToken       string
}

type LogConfig struct {
	Level  string
	Format string
}

type ModelConfig struct {
	BaseURL          string
	OpenRouterAPIKey string
	ChatModel        string
	TitleModel       string
	ZoneModel        string
	MaxSteps         int
	ChunkDelay       time.Duration
}

type EmbeddingConfig struct {
	Provider      string
	Model         string
	GeminiAPIKey  string
	OllamaBaseURL string
	OllamaModel   string
}

type StorageConfig struct {
	Driver      string
	DataDir     string
	PostgresDSN string
}

type VectorConfig struct {
	Backend    string
	MatchCount int
}

type WeatherConfig struct {
	BaseURL  string
	APIKey   string
	Units    string
	Lang     string
	Timezone string
}

// Backend and driver names.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	VectorSQLite   = "sqlite"
	VectorPostgres = "postgres"
	VectorChromem  = "chromem"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:3000",
			MaxBodyBytes:   4 << 20,
			RequestTimeout: 300 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Model: ModelConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			ChatModel:  "google/gemini-2.5-flash",
			TitleModel: "openai/gpt-4o-mini",
			ZoneModel:  "google/gemini-2.5-flash",
			MaxSteps:   20,
			ChunkDelay: 10 * time.Millisecond,
		},
		Embedding: EmbeddingConfig{
			Provider:      ProviderGemini,
			Model:         "text-embedding-004",
			OllamaBaseURL: "http://localhost:11434",
			OllamaModel:   "nomic-embed-text",
		},
		Storage: StorageConfig{
			Driver:  DriverSQLite,
			DataDir: defaultDataDir(),
		},
		Vector: VectorConfig{
			Backend:    VectorSQLite,
			MatchCount: 10,
		},
		Weather: WeatherConfig{
			BaseURL:  "https://api.openweathermap.org/data/2.5",
			Units:    "metric",
			Lang:     "es",
			Timezone: "America/Mexico_City",
		},
	}
}

// Load reads configuration from the YAML file backend, then applies CACTUX_*
// environment overrides. Secrets never come from the YAML file: they are
// read from the environment or, failing that, from a dotenv file (./.env, or
// the path in CACTUX_ENV_FILE).
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), newSecretSource(envFilePath()))
}

// LoadDefaults is Load without validation, for commands that only inspect
// or edit configuration.
func LoadDefaults() Config {
	cfg := defaults()
	applyBackend(&cfg, newFileBackend(configFilePath()))
	applyEnvOverrides(&cfg)
	return cfg
}

func loadWith(b Backend, secrets secretSource) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Model.OpenRouterAPIKey == "" {
		missing = append(missing, "OpenRouter API key (CACTUX_OPENROUTER_API_KEY)")
	}
	if cfg.Embedding.Provider == ProviderGemini && cfg.Embedding.GeminiAPIKey == "" {
		missing = append(missing, "Gemini API key (CACTUX_GEMINI_API_KEY)")
	}
	if (cfg.Storage.Driver == DriverPostgres || cfg.Vector.Backend == VectorPostgres) && cfg.Storage.PostgresDSN == "" {
		missing = append(missing, "Postgres DSN (CACTUX_POSTGRES_DSN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	switch cfg.Embedding.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("unknown embedding.provider %q", cfg.Embedding.Provider)
	}
	switch cfg.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	switch cfg.Vector.Backend {
	case VectorSQLite, VectorPostgres, VectorChromem:
	default:
		return fmt.Errorf("unknown vector.backend %q", cfg.Vector.Backend)
	}
	if cfg.Vector.MatchCount <= 0 {
		return errors.New("vector.match_count must be positive")
	}
	return nil
}
