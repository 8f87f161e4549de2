package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the bot reads from the environment.
type Config struct {
	TelegramToken     string
	GoogleCredentials string
	SheetName         string

	Gemini   GeminiConfig
	Mistral  MistralConfig
	Metadata MetadataConfig

	DataDir           string
	LogLevel          string
	SyncInterval      time.Duration
	HealthAddr        string
	StartupCheckSheet bool
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	FallbackModels []string
	MaxRetries     int
	Timeout        time.Duration
	TotalTimeout   time.Duration
}

type MistralConfig struct {
	APIKey     string
	Model      string
	AudioModel string
	MaxRetries int
}

type MetadataConfig struct {
	TMDBKey          string
	TMDBLanguage     string
	TMDBRegion       string
	OMDBKey          string
	OMDBBaseURL      string
	KinopoiskKey     string
	KinopoiskBaseURL string
	MaxRetries       int
}

// Load reads the configuration. It never fails; call Validate for required keys.
func Load() *Config {
	return &Config{
		TelegramToken:     getEnvOrDefault("TELEGRAM_TOKEN", ""),
		GoogleCredentials: getEnvOrDefault("GOOGLE_CREDENTIALS", ""),
		SheetName:         getEnvOrDefault("GOOGLE_SHEET_NAME", ""),
		Gemini: GeminiConfig{
			APIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
			Model:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			FallbackModels: getEnvListOrDefault("GEMINI_FALLBACK_MODELS", []string{"gemini-1.5-flash"}),
			MaxRetries:     getEnvIntOrDefault("GEMINI_MAX_RETRIES", 2),
			Timeout:        time.Duration(getEnvIntOrDefault("GEMINI_TIMEOUT_SECONDS", 25)) * time.Second,
			TotalTimeout:   time.Duration(getEnvIntOrDefault("GEMINI_TOTAL_TIMEOUT_SECONDS", 45)) * time.Second,
		},
		Mistral: MistralConfig{
			APIKey:     getEnvOrDefault("MISTRALAPI", getEnvOrDefault("MISTRAL_API_KEY", "")),
			Model:      getEnvOrDefault("MISTRAL_MODEL", "mistral-small-latest"),
			AudioModel: getEnvOrDefault("MISTRAL_AUDIO_MODEL", "voxtral-mini-latest"),
			MaxRetries: getEnvIntOrDefault("MISTRAL_MAX_RETRIES", 2),
		},
		Metadata: MetadataConfig{
			TMDBKey:          getEnvOrDefault("TMDB_API_KEY", ""),
			TMDBLanguage:     getEnvOrDefault("TMDB_LANGUAGE", "ru-RU"),
			TMDBRegion:       getEnvOrDefault("TMDB_REGION", "RU"),
			OMDBKey:          getEnvOrDefault("OMDB_API_KEY", ""),
			OMDBBaseURL:      getEnvOrDefault("OMDB_BASE_URL", "https://www.omdbapi.com/"),
			KinopoiskKey:     getEnvOrDefault("KINOPOISK_API_KEY", ""),
			KinopoiskBaseURL: getEnvOrDefault("KINOPOISK_BASE_URL", "https://api.kinopoisk.dev/v1.4"),
			MaxRetries:       getEnvIntOrDefault("EXTERNAL_API_MAX_RETRIES", 2),
		},
		DataDir:           getEnvOrDefault("DATA_DIR", "data"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "INFO"),
		SyncInterval:      time.Duration(getEnvIntOrDefault("SYNC_INTERVAL_MINUTES", 5)) * time.Minute,
		HealthAddr:        getEnvOrDefault("HEALTH_ADDR", ""),
		StartupCheckSheet: getEnvBoolOrDefault("STARTUP_CHECK_SHEET", true),
	}
}

// Validate reports the required keys without which the bot cannot start.
func (c *Config) Validate() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.GoogleCredentials == "" {
		missing = append(missing, "GOOGLE_CREDENTIALS")
	}
	if c.SheetName == "" {
		missing = append(missing, "GOOGLE_SHEET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (set them in .env)", strings.Join(missing, ", "))
	}
	return nil
}

// Warnings lists keys that are required for some features but do not block startup.
func (c *Config) Warnings() []string {
	var out []string
	if c.Gemini.APIKey == "" {
		out = append(out, "GEMINI_API_KEY is not set: AI answers and poster recognition are disabled")
	}
	if c.Mistral.APIKey == "" {
		out = append(out, "MISTRALAPI is not set: voice messages are disabled")
	}
	if c.Metadata.TMDBKey == "" {
		out = append(out, "TMDB_API_KEY is not set: metadata and candidates come from OMDB/Kinopoisk only")
	}
	return out
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "moviebot.db")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "moviebot.log")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
