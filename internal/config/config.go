package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           string
	FrontendOrigin string
	DataDir        string
	RedisURL       string
	RedisPassword  string
	ArchiveURL     string
	TelegramToken  string
	TelegramChatID int64
	LogLevel       string

	// Upstream request headers, JSON objects of header name to value.
	XAuthHeaders     string
	AxiomAuthHeaders string
	AlphaAuthHeaders string

	Pipeline Pipeline
}

// Pipeline holds the polling and kill-switch tuning knobs.
type Pipeline struct {
	FetchInterval  time.Duration `envconfig:"FETCH_INTERVAL" default:"3s"`
	SearchInterval time.Duration `envconfig:"SEARCH_INTERVAL" default:"10s"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"5s"`
	PriceInterval  time.Duration `envconfig:"PRICE_INTERVAL" default:"600s"`
	FibFloor       float64       `envconfig:"FIB_FLOOR" default:"5750"`
	ExitAbsFloor   float64       `envconfig:"EXIT_ABS_FLOOR" default:"6500"`
	ExitPeakRatio  float64       `envconfig:"EXIT_PEAK_RATIO" default:"0.1"`
	ExitSustain    time.Duration `envconfig:"EXIT_SUSTAIN" default:"180s"`
	Retention      int           `envconfig:"RETENTION" default:"7"`
}

// Load reads an optional .env file, then the environment, then Infisical
// for secrets the environment left empty.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:             envOr("PORT", "8080"),
		FrontendOrigin:   envOr("FRONTEND_ORIGIN", "*"),
		DataDir:          envOr("DATA_DIR", "./data"),
		RedisURL:         os.Getenv("REDIS_URL"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		ArchiveURL:       os.Getenv("ARCHIVE_DATABASE_URL"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		XAuthHeaders:     os.Getenv("X_AUTH_HEADERS"),
		AxiomAuthHeaders: os.Getenv("AXIOM_AUTH_HEADERS"),
		AlphaAuthHeaders: os.Getenv("ALPHA_AUTH_HEADERS"),
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := envconfig.Process("", &cfg.Pipeline); err != nil {
		return Config{}, fmt.Errorf("pipeline config: %w", err)
	}
	if err := cfg.Pipeline.validate(); err != nil {
		return Config{}, err
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg, nil
}

func (p Pipeline) validate() error {
	switch {
	case p.FetchInterval <= 0:
		return fmt.Errorf("FETCH_INTERVAL must be positive")
	case p.SearchInterval <= 0:
		return fmt.Errorf("SEARCH_INTERVAL must be positive")
	case p.PriceInterval <= 0:
		return fmt.Errorf("PRICE_INTERVAL must be positive")
	case p.ExitPeakRatio < 0 || p.ExitPeakRatio >= 1:
		return fmt.Errorf("EXIT_PEAK_RATIO must be in [0,1)")
	case p.Retention < 1:
		return fmt.Errorf("RETENTION must be at least 1")
	}
	return nil
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"TELEGRAM_BOT_TOKEN":   &cfg.TelegramToken,
		"REDIS_PASSWORD":       &cfg.RedisPassword,
		"ARCHIVE_DATABASE_URL": &cfg.ArchiveURL,
		"X_AUTH_HEADERS":       &cfg.XAuthHeaders,
		"AXIOM_AUTH_HEADERS":   &cfg.AxiomAuthHeaders,
		"ALPHA_AUTH_HEADERS":   &cfg.AlphaAuthHeaders,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

// ParseHeaders decodes a JSON object of header names to values. An empty
// string yields no headers.
func ParseHeaders(raw string) (http.Header, error) {
	h := http.Header{}
	if strings.TrimSpace(raw) == "" {
		return h, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse headers: %w", err)
	}
	for k, v := range m {
		h.Set(k, v)
	}
	return h, nil
}

// ParseLevel maps LOG_LEVEL to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
