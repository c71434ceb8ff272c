package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/llm"
)

// RuntimeSettings are the values that can be changed while the server runs.
// They are persisted as JSON and overlaid on the environment at startup.
type RuntimeSettings struct {
	LLMAPIURL      string `json:"llm_api_url"`
	LLMAPIKey      string `json:"llm_api_key"`
	LLMModel       string `json:"llm_model"`
	LLMTimeoutMs   int    `json:"llm_timeout_ms,omitempty"`
	LLMMaxRetries  *int   `json:"llm_max_retries,omitempty"`
	CronExpr       string `json:"cron_expr"`
	TargetLanguage string `json:"target_language"`
}

// Validate reports every problem with s, joined.
func (s RuntimeSettings) Validate() error {
	var errs []error
	required := map[string]string{
		"llm_api_url":     s.LLMAPIURL,
		"llm_model":       s.LLMModel,
		"cron_expr":       s.CronExpr,
		"target_language": s.TargetLanguage,
	}
	for _, name := range []string{"llm_api_url", "llm_model", "cron_expr", "target_language"} {
		if strings.TrimSpace(required[name]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	switch strings.TrimSpace(s.LLMAPIKey) {
	case "":
		errs = append(errs, fmt.Errorf("llm_api_key is required"))
	case llm.PlaceholderAPIKey:
		errs = append(errs, fmt.Errorf("llm_api_key is still the placeholder"))
	}
	if s.LLMTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("llm_timeout_ms must not be negative"))
	}
	if s.LLMMaxRetries != nil && *s.LLMMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm_max_retries must not be negative"))
	}
	if s.CronExpr != "" {
		if _, err := cron.ParseStandard(s.CronExpr); err != nil {
			errs = append(errs, fmt.Errorf("invalid cron_expr: %w", err))
		}
	}
	if s.TargetLanguage != "" {
		if _, err := language.Parse(s.TargetLanguage); err != nil {
			errs = append(errs, fmt.Errorf("invalid target_language: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with the API key masked, for display.
func (s RuntimeSettings) Redacted() RuntimeSettings {
	if n := len(s.LLMAPIKey); n > 4 {
		s.LLMAPIKey = strings.Repeat("*", n-4) + s.LLMAPIKey[n-4:]
	} else if n > 0 {
		s.LLMAPIKey = "****"
	}
	return s
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	retries := c.LLM.MaxRetries
	return RuntimeSettings{
		LLMAPIURL:      c.LLM.APIURL,
		LLMAPIKey:      c.LLM.APIKey,
		LLMModel:       c.LLM.Model,
		LLMTimeoutMs:   c.LLM.TimeoutMs,
		LLMMaxRetries:  &retries,
		CronExpr:       c.Translate.CronExpr,
		TargetLanguage: c.Translate.TargetLanguage.String(),
	}
}

// Apply overlays the non-empty settings onto c.
func (s RuntimeSettings) Apply(c *Config) {
	if strings.TrimSpace(s.LLMAPIURL) != "" {
		c.LLM.APIURL = s.LLMAPIURL
	}
	if strings.TrimSpace(s.LLMAPIKey) != "" {
		c.LLM.APIKey = s.LLMAPIKey
	}
	if strings.TrimSpace(s.LLMModel) != "" {
		c.LLM.Model = s.LLMModel
	}
	if s.LLMTimeoutMs > 0 {
		c.LLM.TimeoutMs = s.LLMTimeoutMs
	}
	if s.LLMMaxRetries != nil {
		c.LLM.MaxRetries = *s.LLMMaxRetries
	}
	if strings.TrimSpace(s.CronExpr) != "" {
		c.Translate.CronExpr = s.CronExpr
	}
	if tag, err := language.Parse(s.TargetLanguage); err == nil {
		c.Translate.TargetLanguage = tag
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		settings.Apply(c)
	}
}

// WithRuntimeSettingsFile overlays the settings file at path when it exists.
func WithRuntimeSettingsFile(path string) (Option, error) {
	settings, err := LoadRuntimeSettingsFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return func(*Config) {}, nil
	}
	if err != nil {
		return nil, err
	}
	return WithRuntimeSettings(settings), nil
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

// WriteRuntimeSettingsFile validates settings and replaces the file at path
// atomically.
func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RuntimeSettingsStore keeps the current settings and persists updates.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

// NewRuntimeSettingsStore does not validate initial, so a server started
// with the placeholder key can still be configured through the API.
func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
