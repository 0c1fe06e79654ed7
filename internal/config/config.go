package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"medreport/internal/logger"
)

type Config struct {
	// OpenAI Configuration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIImageModel  string
	OpenAITemperature float32
	AnalysisRetries   int

	// Google Cloud Configuration
	GoogleCredentialsJSON string
	GoogleCredentialsFile string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// OCR Configuration
	OCREngines       []string // tried in order: vision, documentai, tesseract
	OCRLanguageHints []string
	TesseractLangs   []string

	// Input Configuration
	MaxFileSize     int64
	DownloadRetries int
	DownloadTimeout time.Duration

	// Storage and Queue Configuration
	DatabaseURL       string // empty selects the in-memory store
	RedisURL          string
	QueueName         string
	WorkerConcurrency int
	NotifyChannel     string
	HTTPAddr          string // empty disables the worker HTTP endpoints

	// Pipeline Configuration
	StageTimeout time.Duration
	RequireImage bool

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:      getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAITemperature:     getEnvFloat("OPENAI_TEMPERATURE", 0.3),
		AnalysisRetries:       getEnvInt("ANALYSIS_MAX_RETRIES", 2),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OCREngines:            getEnvList("OCR_ENGINES", []string{"vision"}),
		OCRLanguageHints:      getEnvList("OCR_LANGUAGE_HINTS", []string{"en"}),
		TesseractLangs:        getEnvList("TESSERACT_LANGUAGES", []string{"eng"}),
		MaxFileSize:           int64(getEnvInt("MAX_FILE_SIZE", 20*1024*1024)),
		DownloadRetries:       getEnvInt("DOWNLOAD_MAX_RETRIES", 3),
		DownloadTimeout:       time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 60)) * time.Second,
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueueName:             getEnv("QUEUE_NAME", "reports"),
		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
		NotifyChannel:         getEnv("NOTIFY_CHANNEL", "reports:processed"),
		HTTPAddr:              getEnv("HTTP_ADDR", ""),
		StageTimeout:          time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 120)) * time.Second,
		RequireImage:          getEnvBool("PIPELINE_REQUIRE_IMAGE", true),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if len(c.OCREngines) == 0 {
		return fmt.Errorf("OCR_ENGINES must name at least one engine")
	}
	for _, engine := range c.OCREngines {
		switch engine {
		case "vision", "tesseract":
		case "documentai":
			if c.GoogleCloudProject == "" {
				return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai engine")
			}
			if c.DocumentAIProcessorID == "" {
				return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai engine")
			}
		default:
			return fmt.Errorf("unknown OCR engine %q", engine)
		}
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("STAGE_TIMEOUT_SECONDS must be positive")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// HasGoogleCredentials reports whether explicit Google credentials were configured.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleCredentialsJSON != "" || c.GoogleCredentialsFile != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
