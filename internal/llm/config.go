package llm

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PlaceholderAPIKey is the key shipped in sample configuration. A client
// configured with it refuses every request.
const PlaceholderAPIKey = "YOUR_DEEPSEEK_API_KEY"

const (
	DefaultEndpoint   = "https://api.deepseek.com/v1/chat/completions"
	DefaultModel      = "deepseek-chat"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// Config holds the configuration for the translation client.
// It is read-only once the client is constructed.
//
// APIKey: bearer credential for the endpoint
// Endpoint: full chat-completions URL
// Model: model name sent with every request
// Timeout: per-attempt deadline
// MaxRetries: additional attempts after the first
// Debug: log retry attempts and raw responses
type Config struct {
	APIKey     string        `json:"api_key"`
	Endpoint   string        `json:"endpoint"`
	Model      string        `json:"model"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	Debug      bool          `json:"debug"`
}

// DefaultConfig returns a config pointing at DeepSeek with the placeholder key.
func DefaultConfig() Config {
	return Config{
		APIKey:     PlaceholderAPIKey,
		Endpoint:   DefaultEndpoint,
		Model:      DefaultModel,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks structural settings. The credential is checked per
// request instead, so a placeholder key is not a Validate failure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL: %q", c.Endpoint)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// HasCredential reports whether the API key is set to something other than
// the placeholder.
func (c Config) HasCredential() bool {
	key := strings.TrimSpace(c.APIKey)
	return key != "" && key != PlaceholderAPIKey
}

// GetHeaders returns the headers for the LLM API request
func (c Config) GetHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
}
