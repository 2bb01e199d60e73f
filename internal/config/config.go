package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hydrodata/efashydro/pkg/ehdcc"
)

const defaultRequestTimeout = 30 * time.Second

// Config holds runtime configuration for the CLI. Credentials may stay
// empty here; command flags can still supply them.
type Config struct {
	User           string
	Password       string
	BaseURL        string
	DatabaseURL    string
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.User = strings.TrimSpace(os.Getenv("EHDCC_USER"))
	cfg.Password = strings.TrimSpace(os.Getenv("EHDCC_PASSWORD"))

	cfg.BaseURL = strings.TrimSpace(os.Getenv("EHDCC_BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = ehdcc.DefaultBaseURL
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.RequestTimeout = defaultRequestTimeout
	if v := strings.TrimSpace(os.Getenv("EHDCC_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid EHDCC_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	return cfg, nil
}
