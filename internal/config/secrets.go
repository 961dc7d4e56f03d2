package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func envFilePath() string {
	if p := os.Getenv("CACTUX_ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// secretSource resolves secret keys by environment variable name.
type secretSource interface {
	Lookup(env string) (string, bool)
}

// dotenvSecrets prefers the process environment and falls back to the
// values of a dotenv file. The file is never written.
type dotenvSecrets struct {
	file map[string]string
}

func newSecretSource(path string) secretSource {
	vals, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read env file %s: %v\n", path, err)
		}
		vals = map[string]string{}
	}
	return dotenvSecrets{file: vals}
}

func (s dotenvSecrets) Lookup(env string) (string, bool) {
	if v := os.Getenv(env); v != "" {
		return v, true
	}
	v, ok := s.file[env]
	return v, ok && v != ""
}

func applySecrets(cfg *Config, src secretSource) {
	for _, s := range specs {
		if !s.secret || s.env == "" {
			continue
		}
		if v, ok := src.Lookup(s.env); ok {
			s.apply(cfg, v)
		}
	}
}
