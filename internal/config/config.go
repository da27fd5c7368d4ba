package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/iulspop/learn-chinese/internal/cards"
)

// Config holds runtime configuration.
type Config struct {
	Port  string
	DBDSN string

	AnthropicAPIKey   string
	AnthropicModel    string
	GoogleCredentials string
	StabilityAPIKey   string

	DataDir string

	BatchSize            int
	Pacing               time.Duration
	WordSpeakingRate     float64
	SentenceSpeakingRate float64
	LevelCeiling         int
	SkipImages           bool
	MaxItems             int
}

// Load parses environment variables into Config and validates required
// values.
func Load() (Config, error) {
	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		DBDSN:                os.Getenv("DB_DSN"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:       os.Getenv("ANTHROPIC_MODEL"),
		GoogleCredentials:    os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		StabilityAPIKey:      os.Getenv("STABILITY_API_KEY"),
		DataDir:              getEnv("DATA_DIR", "data"),
		BatchSize:            getEnvInt("BATCH_SIZE", cards.DefaultBatchSize),
		Pacing:               time.Duration(getEnvInt("PACING_MS", 500)) * time.Millisecond,
		WordSpeakingRate:     getEnvFloat("WORD_SPEAKING_RATE", cards.DefaultWordRate),
		SentenceSpeakingRate: getEnvFloat("SENTENCE_SPEAKING_RATE", cards.DefaultSentenceRate),
		LevelCeiling:         getEnvInt("HSK_LEVEL_CEILING", 0),
		SkipImages:           getEnvBool("SKIP_IMAGES", false),
		MaxItems:             getEnvInt("MAX_ITEMS", 0),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("DB_DSN is required")
	}

	return cfg, nil
}

// ValidateGeneration checks the credentials a generation run needs. A run
// with images disabled does not need a Stability key.
func (c Config) ValidateGeneration(skipImages bool) error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", cards.ErrMissingConfig)
	}
	if c.GoogleCredentials == "" {
		return fmt.Errorf("%w: GOOGLE_APPLICATION_CREDENTIALS is not set", cards.ErrMissingConfig)
	}
	if !skipImages && !c.SkipImages && c.StabilityAPIKey == "" {
		return fmt.Errorf("%w: STABILITY_API_KEY is not set (disable images to skip)", cards.ErrMissingConfig)
	}
	return nil
}

// CatalogPath returns the location of the HSK word list.
func (c Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "complete.json")
}

// MediaDir returns the media store directory.
func (c Config) MediaDir() string {
	return filepath.Join(c.DataDir, "media")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
