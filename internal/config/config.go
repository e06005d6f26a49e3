package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Google Cloud
	GCPProjectID  string
	GCSBucketName string // Empty = in-memory artifact store (dev mode)
	GCPRegion     string

	// Veo video generation
	VeoModel        string
	VeoPollInterval time.Duration
	VeoPollTimeout  time.Duration

	// Job ledger
	DatabaseURL string // Empty = in-memory ledger (dev mode)

	// Rate limiting
	RedisURL         string // Empty = in-memory rate limiter
	PreviewRateLimit int    // Preview requests allowed per client per minute

	// Prompt enhancer: "off", "gemini", or "openai"
	PromptEnhancer string
	GeminiKey      string
	OpenAIKey      string

	// Local scratch space for downloaded/merged media
	TempDir string

	// Frontend CORS origin (appended to CorsAllowedOrigins)
	FrontendURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		GCSBucketName:      getEnv("GCS_BUCKET_NAME", ""),
		GCPRegion:          getEnv("GCP_REGION", "us-central1"),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.0-generate-001"),
		VeoPollInterval:    getEnvDuration("VEO_POLL_INTERVAL", 10*time.Second),
		VeoPollTimeout:     getEnvDuration("VEO_POLL_TIMEOUT", 300*time.Second),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		PreviewRateLimit:   getEnvInt("PREVIEW_RATE_LIMIT", 20),
		PromptEnhancer:     getEnv("PROMPT_ENHANCER", "off"),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		TempDir:            getEnv("TEMP_DIR", "/tmp/kapsule"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
	}

	// Validate required fields
	if cfg.GCSBucketName != "" && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required when GCS_BUCKET_NAME is set")
	}

	switch cfg.PromptEnhancer {
	case "off", "gemini", "openai":
	default:
		return nil, fmt.Errorf("PROMPT_ENHANCER must be one of off, gemini, openai (got %q)", cfg.PromptEnhancer)
	}

	if cfg.PromptEnhancer == "gemini" && cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when PROMPT_ENHANCER=gemini")
	}

	if cfg.PromptEnhancer == "openai" && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when PROMPT_ENHANCER=openai")
	}

	if cfg.PreviewRateLimit <= 0 {
		return nil, fmt.Errorf("PREVIEW_RATE_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
