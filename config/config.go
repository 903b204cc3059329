package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultVisionURL     = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	defaultVisionModel   = "gemini-1.5-flash"
	defaultNutritionURL  = "https://api.calorieninjas.com/v1/nutrition"
	defaultGroqURL       = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModel     = "llama3-70b-8192"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterMdl = "anthropic/claude-3.5-sonnet"
)

// ProviderConfig describes one upstream HTTP provider.
type ProviderConfig struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}

// VisionConfig selects and configures the image-understanding provider.
type VisionConfig struct {
	Provider string // "chat" or "gcp"
	ProviderConfig
	MinLabelScore float32
}

// AdvisorConfig selects and configures the advice-generation provider.
type AdvisorConfig struct {
	Provider string // "groq" or "openrouter"
	ProviderConfig
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort  string
	ServerHost  string
	LogMode     string
	CORSOrigins []string

	// Database configuration
	DatabaseDriver string
	DatabaseURL    string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	MigrationsDir  string

	// Redis configuration
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Providers
	Vision    VisionConfig
	Nutrition ProviderConfig
	Advisor   AdvisorConfig

	// Pipeline
	MaxImageBytes      int64
	ProviderMaxRetries int
	DefaultDailyGoal   int
	Location           *time.Location
	NutritionCacheTTL  time.Duration
	RateLimitPerHour   int

	// Image archive
	S3BucketName string
	AWSRegion    string

	// Tracing
	OtelEnabled bool
}

// LoadConfig creates a new Config from environment variables, falling back to
// Docker secrets for anything not set in the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s configuration: %w", GetEnvironment(), err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func load(cfg *Config) error {
	var err error

	cfg.ServerPort = value("SERVER_PORT", "8000")
	cfg.ServerHost = value("SERVER_HOST", "0.0.0.0")
	cfg.LogMode = value("LOG_MODE", string(GetEnvironment()))
	cfg.CORSOrigins = splitList(value("CORS_ORIGINS", ""))

	cfg.DatabaseDriver = strings.ToLower(value("DATABASE_DRIVER", "postgres"))
	cfg.DatabaseURL = value("DATABASE_URL", "")
	cfg.DBHost = value("DB_HOST", "localhost")
	cfg.DBPort = value("DB_PORT", "5432")
	cfg.DBUser = value("DB_USER", "postgres")
	cfg.DBPassword = value("DB_PASSWORD", "")
	cfg.DBName = value("DB_NAME", "nutrisnap")
	cfg.DBSSLMode = value("DB_SSL_MODE", "disable")
	cfg.MigrationsDir = value("MIGRATIONS_DIR", "migrations")
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseDriver == "sqlite" {
			cfg.DatabaseURL = "nutrisnap.db"
		} else {
			cfg.DatabaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
		}
	}

	cfg.RedisURL = value("REDIS_URL", "")
	cfg.RedisHost = value("REDIS_HOST", "")
	cfg.RedisPort = value("REDIS_PORT", "6379")
	cfg.RedisPassword = value("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = intValue("REDIS_DB", 0); err != nil {
		return err
	}

	cfg.Vision.Provider = strings.ToLower(value("VISION_PROVIDER", "chat"))
	cfg.Vision.APIKey = value("VISION_API_KEY", "")
	cfg.Vision.APIURL = value("VISION_API_URL", defaultVisionURL)
	cfg.Vision.Model = value("VISION_MODEL", defaultVisionModel)
	if cfg.Vision.Timeout, err = durationValue("VISION_TIMEOUT", 15*time.Second); err != nil {
		return err
	}
	minScore, err := floatValue("VISION_MIN_LABEL_SCORE", 0.6)
	if err != nil {
		return err
	}
	cfg.Vision.MinLabelScore = float32(minScore)

	cfg.Nutrition.APIKey = value("CALORIENINJAS_API_KEY", "")
	cfg.Nutrition.APIURL = value("CALORIENINJAS_API_URL", defaultNutritionURL)
	if cfg.Nutrition.Timeout, err = durationValue("NUTRITION_TIMEOUT", 10*time.Second); err != nil {
		return err
	}

	cfg.Advisor.Provider = strings.ToLower(value("ADVISOR_PROVIDER", "groq"))
	switch cfg.Advisor.Provider {
	case "openrouter":
		cfg.Advisor.APIKey = value("OPENROUTER_API_KEY", "")
		cfg.Advisor.APIURL = value("ADVISOR_API_URL", defaultOpenRouterURL)
		cfg.Advisor.Model = value("ADVISOR_MODEL", value("OPENROUTER_MODEL", defaultOpenRouterMdl))
	default:
		cfg.Advisor.APIKey = value("GROQ_API_KEY", "")
		cfg.Advisor.APIURL = value("ADVISOR_API_URL", defaultGroqURL)
		cfg.Advisor.Model = value("ADVISOR_MODEL", defaultGroqModel)
	}
	if cfg.Advisor.Timeout, err = durationValue("ADVISOR_TIMEOUT", 15*time.Second); err != nil {
		return err
	}

	maxImage, err := intValue("MAX_IMAGE_BYTES", 10*1024*1024)
	if err != nil {
		return err
	}
	cfg.MaxImageBytes = int64(maxImage)
	if cfg.ProviderMaxRetries, err = intValue("PROVIDER_MAX_RETRIES", 0); err != nil {
		return err
	}
	if cfg.DefaultDailyGoal, err = intValue("DEFAULT_DAILY_GOAL", 2500); err != nil {
		return err
	}
	if cfg.NutritionCacheTTL, err = durationValue("NUTRITION_CACHE_TTL", 24*time.Hour); err != nil {
		return err
	}
	if cfg.RateLimitPerHour, err = intValue("RATE_LIMIT_PER_HOUR", 60); err != nil {
		return err
	}

	tz := value("APP_TIMEZONE", "Local")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
	}

	cfg.S3BucketName = value("S3_BUCKET_NAME", "")
	cfg.AWSRegion = value("AWS_REGION", "")

	cfg.OtelEnabled = boolValue("OTEL_ENABLED")

	return nil
}

// value returns the environment variable, then the matching Docker secret
// (lower-cased name), then the fallback.
func value(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := readSecret(strings.ToLower(key)); v != "" {
		return v
	}
	return fallback
}

func intValue(key string, fallback int) (int, error) {
	raw := value(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func floatValue(key string, fallback float64) (float64, error) {
	raw := value(key, "")
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func durationValue(key string, fallback time.Duration) (time.Duration, error) {
	raw := value(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func boolValue(key string) bool {
	switch strings.ToLower(value(key, "")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
