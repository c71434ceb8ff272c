package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/srt-translator/pkg/log"
)

const (
	baseBackoff = time.Second
	maxBackoff  = 10 * time.Second

	maxResponseBytes = 4 << 20
)

// Doer performs one HTTP exchange. *http.Client.Do satisfies it.
type Doer func(*http.Request) (*http.Response, error)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client translates single text fragments through an OpenAI compatible
// chat-completions endpoint. Safe for concurrent use: every call owns its
// own attempt counter and deadline.
type Client struct {
	config Config
	do     Doer
	sleep  Sleeper
}

type Option func(*Client)

// WithHTTPClient sends requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.do = hc.Do
	}
}

// WithHTTPDoer replaces the transport entirely.
func WithHTTPDoer(do Doer) Option {
	return func(c *Client) {
		c.do = do
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a new translation client. The config is copied; later
// changes to *config do not affect the client.
//
// Example:
//
//	cfg := llm.DefaultConfig()
//	cfg.APIKey = os.Getenv("LLM_API_KEY")
//	client, err := llm.NewClient(&cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	text, err := client.Translate(ctx, "Hello", "zh")
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("invalid configuration: config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config: *config,
		do:     (&http.Client{}).Do,
		sleep:  sleepWithCtx,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Translate translates one fragment into targetLang.
//
// Blank fragments return "" without a request. A missing or placeholder
// credential fails with KindConfiguration before any request. Timeouts,
// non-2xx responses, transport and decode failures are retried up to
// MaxRetries times with capped exponential backoff; the last error is
// returned once attempts run out. Cancelling ctx stops immediately with
// ctx.Err().
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	if !c.config.HasCredential() {
		return "", newError(KindConfiguration, "API key is not configured, set LLM_API_KEY to a real key", nil)
	}

	request := newTranslationRequest(c.config.Model, sanitizeFragment(text), targetLang)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if c.config.Debug && attempt > 0 {
			log.Debug("LLM API retry attempt %d/%d", attempt, c.config.MaxRetries)
		}

		response, err := c.ChatCompletion(ctx, request)
		if err == nil {
			return response.Content(), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var llmErr *Error
		if !errors.As(err, &llmErr) {
			return "", err
		}
		llmErr.Attempts = attempt + 1
		lastErr = llmErr

		if llmErr.Kind == KindTimeout {
			log.Warn("Request timed out after %s, retry %d/%d", c.config.Timeout, attempt, c.config.MaxRetries)
		} else {
			log.Warn("LLM API error: %s, retry %d/%d", llmErr.Message, attempt, c.config.MaxRetries)
		}

		if !llmErr.Retryable() || attempt >= c.config.MaxRetries {
			break
		}
		if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// ChatCompletion performs a single exchange bounded by the configured
// timeout. Failures are *Error values.
func (c *Client) ChatCompletion(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindNetwork, "failed to create request", err)
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.do(req)
	if err != nil {
		if timedOut(attemptCtx, err) {
			return nil, newError(KindTimeout, fmt.Sprintf("request timed out after %s", c.config.Timeout), err)
		}
		return nil, newError(KindNetwork, "failed to make request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if timedOut(attemptCtx, err) {
			return nil, newError(KindTimeout, fmt.Sprintf("request timed out after %s", c.config.Timeout), err)
		}
		return nil, newError(KindNetwork, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("API request failed with status %d", resp.StatusCode)
		}
		httpErr := newError(KindHTTP, msg, nil)
		httpErr.StatusCode = resp.StatusCode
		return nil, httpErr
	}

	if c.config.Debug {
		log.Debug("LLM API response: %s", string(body))
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(body, &chatResponse); err != nil {
		return nil, newError(KindParse, "failed to parse response", err)
	}

	return &chatResponse, nil
}

// backoffDelay returns min(1s * 2^attempt, 10s).
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 4 {
		return maxBackoff
	}
	return min(baseBackoff<<attempt, maxBackoff)
}

func timedOut(attemptCtx context.Context, err error) bool {
	return errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || os.IsTimeout(err)
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
