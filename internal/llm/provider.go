// Package llm is the language model gateway used by intake. One Provider is
// selected at startup and injected; business logic never branches on provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kutbudev/boardroom/internal/secrets"
)

// ErrUnavailable wraps every failure to get a response from the model:
// network errors, timeouts, non-2xx statuses and missing credentials.
var ErrUnavailable = errors.New("language model unavailable")

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "google/gemini-2.5-flash").
	Name() string
}

// Image is an attachment sent to vision-capable models
type Image struct {
	MimeType string
	Data     []byte
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // Max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0 (0 = deterministic)
	Model       string  // Override model for this request (empty = use provider default)
	Format      string  // "json" for structured output, empty for plain text
	System      string  // System prompt (optional)
	Images      []Image // Vision input (optional)
}

// Config holds provider configuration.
type Config struct {
	Provider string // "google", "openrouter", "ollama", "offline"
	Model    string
	APIKey   string // empty = env var, then keyring
	BaseURL  string
	Timeout  time.Duration
}

// NewProvider creates an LLM provider from the given config.
// A hosted provider without credentials degrades to the offline provider so
// intake keeps working on heuristics alone.
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch strings.ToLower(cfg.Provider) {
	case "google":
		key := resolveKey(cfg.APIKey, "google", "GEMINI_API_KEY", "GOOGLE_API_KEY")
		if key == "" {
			return offlineProvider{reason: "google provider requires GEMINI_API_KEY or GOOGLE_API_KEY"}, nil
		}
		return &googleProvider{
			apiKey:  key,
			model:   orDefault(cfg.Model, "gemini-2.5-flash"),
			baseURL: orDefault(cfg.BaseURL, "https://generativelanguage.googleapis.com/v1beta"),
			client:  newHTTPClient(timeout),
		}, nil

	case "openrouter":
		key := resolveKey(cfg.APIKey, "openrouter", "OPENROUTER_API_KEY")
		if key == "" {
			return offlineProvider{reason: "openrouter provider requires OPENROUTER_API_KEY"}, nil
		}
		return &openrouterProvider{
			apiKey:  key,
			model:   orDefault(cfg.Model, "openai/gpt-4o-mini"),
			baseURL: orDefault(cfg.BaseURL, "https://openrouter.ai/api/v1"),
			client:  newHTTPClient(timeout),
		}, nil

	case "ollama":
		return &ollamaProvider{
			model:   orDefault(cfg.Model, "llama3.2"),
			baseURL: orDefault(cfg.BaseURL, "http://localhost:11434"),
			client:  newHTTPClient(timeout),
		}, nil

	case "offline", "none", "":
		return offlineProvider{reason: "no language model configured"}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: google, openrouter, ollama, offline)", cfg.Provider)
	}
}

func resolveKey(explicit, provider string, envVars ...string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range envVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	if key, err := secrets.LoadAPIKey(provider); err == nil {
		return key
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, prompt string, opts CompletionOpts) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	return f(ctx, prompt, opts)
}

func (ProviderFunc) Name() string {
	return "func"
}
