package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthProviderLocal    = "local"
	AuthProviderSupabase = "supabase"
)

type Config struct {
	Port          string
	SessionSecret string
	SessionTTL    time.Duration
	MaxUploadSize int64

	DetectBaseURL     string
	DetectFallbackURL string
	DevPort           int
	DevBackendPort    int
	DetectTimeout     time.Duration

	AuthProvider    string
	SupabaseURL     string
	SupabaseAnonKey string
	DBPath          string

	CameraDevice  string
	TelegramToken string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		DetectBaseURL:     os.Getenv("DETECT_BASE_URL"),
		DetectFallbackURL: getEnv("DETECT_FALLBACK_URL", "http://localhost:8000"),
		AuthProvider:      strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderLocal)),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
		DBPath:            getEnv("DB_PATH", "human-guard.db"),
		CameraDevice:      getEnv("CAMERA_DEVICE", "0"),
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DetectTimeout, err = getDuration("DETECT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxUploadSize, err = getInt64("MAX_UPLOAD_SIZE", 10<<20); err != nil {
		return nil, err
	}
	var port int64
	if port, err = getInt64("DEV_PORT", 5173); err != nil {
		return nil, err
	}
	cfg.DevPort = int(port)
	if port, err = getInt64("DEV_BACKEND_PORT", 8000); err != nil {
		return nil, err
	}
	cfg.DevBackendPort = int(port)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AuthProvider {
	case AuthProviderLocal:
	case AuthProviderSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required for AUTH_PROVIDER=%s", c.AuthProvider)
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
