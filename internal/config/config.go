package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Discord Bot (optional)
	DiscordToken string

	// Database
	DatabaseURL string

	// Web Server
	WebBind            string
	CORSAllowedOrigins []string

	// Daily challenge
	DailyTargetSecret    string
	AttemptRatePerMinute int

	// Datasets
	StreetsGeoJSONURL    string
	DataBaseURL          string
	ExclusionsGeoJSONURL string
	DatasetTTL           time.Duration

	// Supabase auth
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string

	Debug bool
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:           os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		WebBind:                getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		CORSAllowedOrigins:     splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*")),
		DailyTargetSecret:      os.Getenv("DAILY_TARGET_SECRET"),
		StreetsGeoJSONURL:      os.Getenv("STREETS_GEOJSON_URL"),
		DataBaseURL:            firstEnv("DATA_BASE_URL", "URL", "DEPLOY_PRIME_URL"),
		ExclusionsGeoJSONURL:   os.Getenv("DAILY_EXCLUSIONS_GEOJSON_URL"),
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.DatasetTTL, err = getDurationDefault("DATASET_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.AttemptRatePerMinute, err = getIntDefault("ATTEMPT_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getBoolDefault("DEBUG", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getDurationDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, value)
	}
	return d, nil
}

func getIntDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func getBoolDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
