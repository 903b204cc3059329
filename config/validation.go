package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// requirement names a value that must be present and how to read it from a Config.
type requirement struct {
	field string
	get   func(*Config) string
}

var (
	nutritionKey = requirement{"CALORIENINJAS_API_KEY", func(c *Config) string { return c.Nutrition.APIKey }}
	visionKey    = requirement{"VISION_API_KEY", func(c *Config) string {
		// Cloud Vision authenticates with application default credentials.
		if c.Vision.Provider == "gcp" {
			return "adc"
		}
		return c.Vision.APIKey
	}}
	advisorKey = requirement{"advisor API key (GROQ_API_KEY or OPENROUTER_API_KEY)", func(c *Config) string { return c.Advisor.APIKey }}
	dbURL      = requirement{"DATABASE_URL", func(c *Config) string { return c.DatabaseURL }}

	// Environment-specific requirements
	requirements = map[Environment][]requirement{
		Development: {dbURL},
		Test:        {},
		CI:          {},
		Production:  {dbURL, nutritionKey, visionKey, advisorKey},
	}
)

// ValidateConfig checks the configuration against the requirements of the
// current environment and reports every problem at once.
func ValidateConfig(cfg *Config) error {
	var errs []string
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg}.Error())
	}

	for _, req := range requirements[GetEnvironment()] {
		if strings.TrimSpace(req.get(cfg)) == "" {
			add(req.field, "is required")
		}
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		add("DATABASE_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DatabaseDriver))
	}
	switch cfg.Vision.Provider {
	case "chat", "gcp":
	default:
		add("VISION_PROVIDER", fmt.Sprintf("unsupported provider %q", cfg.Vision.Provider))
	}
	switch cfg.Advisor.Provider {
	case "groq", "openrouter":
	default:
		add("ADVISOR_PROVIDER", fmt.Sprintf("unsupported provider %q", cfg.Advisor.Provider))
	}

	if cfg.MaxImageBytes <= 0 {
		add("MAX_IMAGE_BYTES", "must be positive")
	}
	if cfg.DefaultDailyGoal <= 0 {
		add("DEFAULT_DAILY_GOAL", "must be positive")
	}
	if cfg.ProviderMaxRetries < 0 {
		add("PROVIDER_MAX_RETRIES", "must not be negative")
	}
	if cfg.Vision.Timeout <= 0 || cfg.Nutrition.Timeout <= 0 || cfg.Advisor.Timeout <= 0 {
		add("*_TIMEOUT", "provider timeouts must be positive")
	}
	if cfg.Vision.MinLabelScore < 0 || cfg.Vision.MinLabelScore > 1 {
		add("VISION_MIN_LABEL_SCORE", "must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}
