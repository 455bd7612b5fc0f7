package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ollamaProvider talks to a local Ollama server
type ollamaProvider struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (o *ollamaProvider) Name() string {
	return "ollama/" + o.model
}

func (o *ollamaProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}
	req := ollamaRequest{
		Model:   model,
		Prompt:  prompt,
		System:  opts.System,
		Stream:  false,
		Options: map[string]any{"temperature": opts.Temperature},
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	if strings.ToLower(opts.Format) == "json" {
		req.Format = "json"
	}
	for _, img := range opts.Images {
		req.Images = append(req.Images, base64.StdEncoding.EncodeToString(img.Data))
	}

	body, err := postJSON(ctx, o.client, o.baseURL+"/api/generate", nil, req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama: parsing response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return strings.TrimSpace(resp.Response), nil
}

// offlineProvider always fails; intake then runs on fallback heuristics.
type offlineProvider struct {
	reason string
}

func (offlineProvider) Name() string {
	return "offline"
}

func (p offlineProvider) Complete(context.Context, string, CompletionOpts) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUnavailable, p.reason)
}
