package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port               string
	UploadMaxBytes     int64
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Timezone used for history timestamps and period resolution
	Timezone string

	// Databases
	HistoryDBPath string
	KakeiDBPath   string
	BakusaiDBPath string

	// Passwords
	HistoryPassword string
	AppPassword     string

	// External services
	GeminiAPIKey      string
	GeminiVisionModel string
	GeminiTTSModel    string
	RembgURL          string
	YtdlpPath         string
	YtdlpCookies      string
	ExternalTimeout   time.Duration

	// Artifacts
	ArtifactBackend string
	ArtifactDir     string
	GCSBucket       string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (history worker)
	GoogleSpreadsheetID string
	ExportSheetPrefix   string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		UploadMaxBytes:     int64(getEnvInt("UPLOAD_MAX_BYTES", 20<<20)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Timezone: getEnv("TIMEZONE", "Asia/Tokyo"),

		HistoryDBPath: getEnv("HISTORY_DB_PATH", "./data/history.db"),
		KakeiDBPath:   getEnv("KAKEI_DB_PATH", "./data/kakei.db"),
		BakusaiDBPath: getEnv("BAKUSAI_DB_PATH", "./data/bakusai.db"),

		HistoryPassword: getEnv("HISTORY_PASSWORD", ""),
		AppPassword:     getEnv("APP_PASSWORD", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		GeminiVisionModel: getEnv("GEMINI_VISION_MODEL", ""),
		GeminiTTSModel:    getEnv("GEMINI_TTS_MODEL", ""),
		RembgURL:          getEnv("REMBG_URL", ""),
		YtdlpPath:         getEnv("YTDLP_PATH", "yt-dlp"),
		YtdlpCookies:      getEnv("YTDLP_COOKIES", "./cookies.txt"),
		ExternalTimeout:   getEnvDuration("EXTERNAL_TIMEOUT", 2*time.Minute),

		ArtifactBackend: getEnv("ARTIFACT_BACKEND", "local"),
		ArtifactDir:     getEnv("ARTIFACT_DIR", "./data/artifacts"),
		GCSBucket:       getEnv("GCS_BUCKET", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "multitool"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "history_export"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		ExportSheetPrefix:   getEnv("EXPORT_SHEET_PREFIX", "history_"),
	}

	return cfg
}

// Location returns the configured timezone, falling back to UTC when it
// cannot be loaded. Validate reports that case.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AdminPassword gates the database browsers. It defaults to the history
// password when APP_PASSWORD is unset.
func (c *Config) AdminPassword() string {
	if c.AppPassword != "" {
		return c.AppPassword
	}
	return c.HistoryPassword
}

// EventsEnabled reports whether history events are published over AMQP.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	// History database directory must exist or be creatable
	if c.HistoryDBPath == "" {
		errors = append(errors, "history database path cannot be empty")
	} else {
		dir := filepath.Dir(c.HistoryDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create history database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.KakeiDBPath == "" {
		errors = append(errors, "kakei database path cannot be empty")
	}
	if c.BakusaiDBPath == "" {
		errors = append(errors, "bakusai database path cannot be empty")
	}

	if c.UploadMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid upload limit %d: must be at least 1024 bytes", c.UploadMaxBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.ExternalTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid external timeout %v: must be at least 1 second", c.ExternalTimeout))
	} else if c.ExternalTimeout > 30*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid external timeout %v: must be at most 30 minutes", c.ExternalTimeout))
	}

	if c.RembgURL != "" {
		if parsedURL, err := url.Parse(c.RembgURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid rembg URL '%s': must be an http(s) URL", c.RembgURL))
		}
	}

	// Validate artifact backend
	switch c.ArtifactBackend {
	case "local":
		if c.ArtifactDir == "" {
			errors = append(errors, "artifact directory cannot be empty when using local backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			errors = append(errors, "GCS bucket is required when using gcs backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid artifact backend '%s': must be one of [local gcs]", c.ArtifactBackend))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the history worker needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.AMQPURL == "" {
		return fmt.Errorf("configuration validation failed:\n- AMQP URL is required by the history worker")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
