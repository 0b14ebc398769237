package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Gemini  GeminiConfig
	Raster  RasterConfig
	Pacing  PacingConfig
	Journal JournalConfig
	Profile ProfileConfig
}

// GeminiConfig holds inference-service configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// RasterConfig holds page-rasterization configuration
type RasterConfig struct {
	Pdftoppm string
	DPI      int
}

// PacingConfig holds the steady-state inter-page delay
type PacingConfig struct {
	PageInterval time.Duration
}

// JournalConfig holds the optional run-journal location
type JournalConfig struct {
	Path string // empty disables the journal
}

// ProfileConfig points at an optional prompt-profile file
type ProfileConfig struct {
	Path string // empty uses the built-in profile
}

// LoadConfig loads configuration from environment variables.
// The API key is read from GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func LoadConfig() *Config {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return &Config{
		Gemini: GeminiConfig{
			APIKey:  apiKey,
			Model:   getEnv("GEMINI_MODEL", "gemini-flash-latest"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 90*time.Second),
		},
		Raster: RasterConfig{
			Pdftoppm: getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:      getEnvAsInt("RASTER_DPI", 200),
		},
		Pacing: PacingConfig{
			PageInterval: getEnvAsDuration("PAGE_INTERVAL", 500*time.Millisecond),
		},
		Journal: JournalConfig{
			Path: getEnv("DOCSCRIBE_JOURNAL", ""),
		},
		Profile: ProfileConfig{
			Path: getEnv("PROMPT_PROFILE", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY or GOOGLE_API_KEY is required", ErrInvalidInput)
	}
	if c.Gemini.Model == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_MODEL must not be empty", ErrInvalidInput)
	}
	if c.Raster.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "RASTER_DPI must be positive", ErrInvalidInput)
	}
	return nil
}
