// Package caller invokes chat models over their HTTP APIs. It speaks the
// provider-agnostic llm.ChatRequest / llm.ChatResponse types and translates
// them to and from the OpenAI, Anthropic and Ollama wire formats.
package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/credentials"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/retry"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 1024
)

var (
	// ErrModel wraps every failure to obtain a usable model response.
	ErrModel = errors.New("model invocation failed")

	errRetryable = errors.New("retryable model status")
)

// Completer turns a single prompt into text. The summarizer only needs this.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Caller is a chat model client.
type Caller interface {
	Completer

	// Chat runs one model call over a full conversation, including tool
	// definitions and image blocks where the provider supports them.
	Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// Name returns the provider name.
	Name() string
}

// Config holds configuration for creating a Caller.
type Config struct {
	Provider    string               // "openai", "anthropic", or "ollama"
	Model       string               // e.g. "gpt-4o-mini", "claude-haiku-4-5-20251001"
	APIKey      string               // explicit API key (highest priority)
	BaseURL     string               // override base URL
	Credentials *credentials.Manager // credentials from memoir auth

	// MaxTokens bounds each reply; defaults to 1024.
	MaxTokens int

	// Timeout bounds a single call including retries; defaults to 60s.
	Timeout time.Duration

	// Retry governs retries of throttled or failed requests.
	Retry retry.Policy

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New creates a Caller. API keys resolve as: explicit APIKey, then the
// credentials file, then OPENAI_API_KEY / ANTHROPIC_API_KEY. A hosted
// provider without any key falls back to a local Ollama.
func New(cfg Config) (Caller, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderOpenAI
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	apiKey, source := credentials.Resolve(cfg.Credentials, provider, cfg.APIKey)
	if apiKey == "" && provider != ProviderOllama {
		cfg.Logger.Warn("no API key found, falling back to ollama", zap.String("provider", provider))
		provider = ProviderOllama
		cfg.Model = ""
		cfg.BaseURL = ""
	}

	t := newTransport(cfg)

	switch provider {
	case ProviderOpenAI:
		cfg.Logger.Debug("model caller configured",
			zap.String("provider", provider),
			zap.String("key_source", string(source)),
		)
		return newOpenAI(t, apiKey, orDefault(cfg.Model, "gpt-4o-mini"), orDefault(cfg.BaseURL, "https://api.openai.com"), maxTokens(cfg)), nil

	case ProviderAnthropic:
		cfg.Logger.Debug("model caller configured",
			zap.String("provider", provider),
			zap.String("key_source", string(source)),
		)
		return newAnthropic(t, apiKey, orDefault(cfg.Model, "claude-haiku-4-5-20251001"), orDefault(cfg.BaseURL, "https://api.anthropic.com"), maxTokens(cfg)), nil

	case ProviderOllama:
		return newOllama(t, orDefault(cfg.Model, "llama3.2"), orDefault(cfg.BaseURL, "http://localhost:11434")), nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %s", provider)
	}
}

// complete runs a one-message chat and returns the reply text.
func complete(ctx context.Context, c Caller, prompt string) (string, error) {
	resp, err := c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleHuman, prompt)},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Text(), nil
}

// transport posts JSON to a model API with retries on throttling and
// server errors.
type transport struct {
	client  *http.Client
	retry   retry.Policy
	timeout time.Duration
	logger  *zap.Logger
}

func newTransport(cfg Config) *transport {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	policy := cfg.Retry
	if policy.BaseDelay == 0 {
		policy = retry.DefaultPolicy()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &transport{
		client:  client,
		retry:   policy,
		timeout: timeout,
		logger:  cfg.Logger.With(zap.String("component", "caller")),
	}
}

func (t *transport) postJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	return retry.Do(ctx, t.retry, isRetryable, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
			if retry.IsRetryableHTTPStatus(resp.StatusCode) {
				t.logger.Debug("retrying model call", zap.Int("status", resp.StatusCode))
				return fmt.Errorf("%w: %w", errRetryable, err)
			}
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	})
}

func isRetryable(err error) bool {
	return errors.Is(err, errRetryable) || retry.IsTransient(err)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func maxTokens(cfg Config) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}

func requestMaxTokens(req *llm.ChatRequest, def int) int {
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		return *req.MaxTokens
	}
	return def
}
