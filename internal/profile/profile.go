package profile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int
	// Data is the data directory
	Data string
	// DSN points to the PostgreSQL database
	DSN string
	// Driver is the database driver. Only "postgres" is supported: vector
	// search requires the pgvector extension.
	Driver string
	// Version is the current version of the server
	Version string

	// Embedding configuration
	EmbeddingProvider   string // MEMEX_EMBEDDING_PROVIDER (default: openai)
	EmbeddingAPIKey     string // MEMEX_EMBEDDING_API_KEY
	EmbeddingBaseURL    string // MEMEX_EMBEDDING_BASE_URL
	EmbeddingModel      string // MEMEX_EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingDimensions int    // MEMEX_EMBEDDING_DIMENSIONS (default: 1536)

	// OCR configuration
	OCREnabled    bool   // MEMEX_OCR_ENABLED (default: false)
	TesseractPath string // MEMEX_OCR_TESSERACT_PATH (default: tesseract)
	TessdataPath  string // MEMEX_OCR_TESSDATA_PATH (default: "")
	OCRLanguages  string // MEMEX_OCR_LANGUAGES (default: eng)

	// Runner configuration
	RunnerIntervalSeconds int // MEMEX_RUNNER_INTERVAL_SECONDS (default: 300)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if an embedding backend is configured.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingAPIKey != "" || p.EmbeddingBaseURL != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from MEMEX_* environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("MEMEX_MODE", p.Mode)
	p.Addr = getEnvOrDefault("MEMEX_ADDR", p.Addr)
	if port := os.Getenv("MEMEX_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			p.Port = n
		}
	}
	p.Data = getEnvOrDefault("MEMEX_DATA", p.Data)
	p.DSN = getEnvOrDefault("MEMEX_DSN", p.DSN)
	p.Driver = getEnvOrDefault("MEMEX_DRIVER", p.Driver)

	p.EmbeddingProvider = getEnvOrDefault("MEMEX_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingAPIKey = getEnvOrDefault("MEMEX_EMBEDDING_API_KEY", p.EmbeddingAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("MEMEX_EMBEDDING_BASE_URL", p.EmbeddingBaseURL)
	p.EmbeddingModel = getEnvOrDefault("MEMEX_EMBEDDING_MODEL", "text-embedding-3-small")
	if dims := os.Getenv("MEMEX_EMBEDDING_DIMENSIONS"); dims != "" {
		if n, err := strconv.Atoi(dims); err == nil {
			p.EmbeddingDimensions = n
		}
	}
	if p.EmbeddingDimensions == 0 {
		p.EmbeddingDimensions = 1536
	}

	if enabled := os.Getenv("MEMEX_OCR_ENABLED"); enabled != "" {
		p.OCREnabled = strings.EqualFold(enabled, "true")
	}
	p.TesseractPath = getEnvOrDefault("MEMEX_OCR_TESSERACT_PATH", "tesseract")
	p.TessdataPath = getEnvOrDefault("MEMEX_OCR_TESSDATA_PATH", p.TessdataPath)
	p.OCRLanguages = getEnvOrDefault("MEMEX_OCR_LANGUAGES", "eng")

	if interval := os.Getenv("MEMEX_RUNNER_INTERVAL_SECONDS"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil {
			p.RunnerIntervalSeconds = n
		}
	}
	if p.RunnerIntervalSeconds == 0 {
		p.RunnerIntervalSeconds = 300
	}
}

// Validate checks that the profile is usable.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "postgres"
	}
	if p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("database DSN is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port: %d", p.Port)
	}
	return nil
}
