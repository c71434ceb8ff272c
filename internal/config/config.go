package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/llm"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the chat-completions endpoint (default: placeholder, which fails every request)
// - LLM_API_URL: full chat-completions URL (default: https://api.deepseek.com/v1/chat/completions)
// - LLM_MODEL: Model name to use (default: deepseek-chat)
// - LLM_TIMEOUT_MS: per-attempt timeout in milliseconds (default: 30000)
// - LLM_MAX_RETRIES: retries after the first attempt (default: 3)
// - LLM_DEBUG: log retry attempts and raw responses (default: false)
//
// Translate Configuration:
// - TARGET_LANGUAGE: BCP 47 tag of the output language (default: zh)
// - WATCH_DIR: directory scanned for new SRT files (default: empty, watcher off)
// - CRON_EXPR: watcher schedule (default: */10 * * * *)
//
// HTTP Configuration:
// - SERVER_ADDR: listen address (default: :8080)
// - CORS_ORIGINS: comma separated allowed origins (default: *)
//
// System Configuration:
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - DATA_DIR: data directory (default: ./data)
// - DB_PATH: history database (default: $DATA_DIR/history.db)
// - SETTINGS_FILE: JSON runtime settings overlay (default: $DATA_DIR/settings.json)
type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm"`

	// Translate Configuration
	Translate TranslateConfig `json:"translate"`

	// HTTP Configuration
	HTTP HTTPConfig `json:"http"`

	// System Configuration
	System SystemConfig `json:"system"`
}

// LLMConfig holds the configuration for the translation client
type LLMConfig struct {
	APIKey     string `json:"-"`
	APIURL     string `json:"api_url"`
	Model      string `json:"model"`
	TimeoutMs  int    `json:"timeout_ms"`
	MaxRetries int    `json:"max_retries"`
	Debug      bool   `json:"debug"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
	WatchDir       string       `json:"watch_dir"`
	CronExpr       string       `json:"cron_expr"`
}

type HTTPConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// SystemConfig holds the system configuration
type SystemConfig struct {
	LogLevel     string `json:"log_level"`
	DataDir      string `json:"data_dir"`
	DBPath       string `json:"db_path"`
	SettingsFile string `json:"settings_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Missing files are ignored and
// variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
		log.Debug("Loaded environment from %s", path)
	}
	return nil
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	targetLanguage, err := language.Parse(getEnvString("TARGET_LANGUAGE", "zh"))
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANGUAGE: %w", err)
	}

	dataDir := getEnvString("DATA_DIR", "./data")

	config := &Config{
		LLM: LLMConfig{
			APIKey:     getEnvString("LLM_API_KEY", llm.PlaceholderAPIKey),
			APIURL:     getEnvString("LLM_API_URL", llm.DefaultEndpoint),
			Model:      getEnvString("LLM_MODEL", llm.DefaultModel),
			TimeoutMs:  getEnvInt("LLM_TIMEOUT_MS", int(llm.DefaultTimeout/time.Millisecond)),
			MaxRetries: getEnvInt("LLM_MAX_RETRIES", llm.DefaultMaxRetries),
			Debug:      getEnvBool("LLM_DEBUG", false),
		},
		Translate: TranslateConfig{
			TargetLanguage: targetLanguage,
			WatchDir:       getEnvString("WATCH_DIR", ""),
			CronExpr:       getEnvString("CRON_EXPR", "*/10 * * * *"),
		},
		HTTP: HTTPConfig{
			Addr:           getEnvString("SERVER_ADDR", ":8080"),
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		System: SystemConfig{
			LogLevel:     getEnvString("LOG_LEVEL", "info"),
			DataDir:      dataDir,
			DBPath:       getEnvString("DB_PATH", filepath.Join(dataDir, "history.db")),
			SettingsFile: getEnvString("SETTINGS_FILE", filepath.Join(dataDir, "settings.json")),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	if !config.LLM.ClientConfig().HasCredential() {
		log.Warn("LLM_API_KEY is not set, every translation request will fail until it is configured")
	}
	log.Debug("Config: endpoint=%s model=%s timeout=%dms retries=%d target=%s watch=%q",
		config.LLM.APIURL, config.LLM.Model, config.LLM.TimeoutMs, config.LLM.MaxRetries,
		config.Translate.TargetLanguage, config.Translate.WatchDir)

	return config, nil
}

// validate checks if all required configuration is properly set.
// A placeholder API key is accepted here; the client rejects it per request.
func (c *Config) validate() error {
	u, err := url.Parse(c.LLM.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("LLM_API_URL must be an absolute URL: %q", c.LLM.APIURL)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.LLM.TimeoutMs <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_MS must be greater than 0")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative")
	}
	if c.Translate.TargetLanguage == language.Und {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	if _, err := cron.ParseStandard(c.Translate.CronExpr); err != nil {
		return fmt.Errorf("invalid CRON_EXPR: %w", err)
	}
	return nil
}

// ClientConfig converts to the translation client configuration.
func (c LLMConfig) ClientConfig() llm.Config {
	return llm.Config{
		APIKey:     c.APIKey,
		Endpoint:   c.APIURL,
		Model:      c.Model,
		Timeout:    time.Duration(c.TimeoutMs) * time.Millisecond,
		MaxRetries: c.MaxRetries,
		Debug:      c.Debug,
	}
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring non-integer %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn("Ignoring non-boolean %s=%q, using %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
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
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
