package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds calls to a self-hosted generation server.
const DefaultHTTPTimeout = 10 * time.Second

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
	Status        string `json:"status"`
}

// HTTPClient calls a self-hosted model server exposing POST /generate.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

var _ Generator = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(opts ...Option) (*HTTPClient, error) {
	cfg := applyOpts(opts)
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Generate posts the request and returns generated_text.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	req = req.withDefaults()

	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}
	body, err := json.Marshal(generateRequest{
		Prompt:      prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Warn("HTTPClient Generate non-success status", "status", resp.Status, "endpoint", c.endpoint)
		return "", fmt.Errorf("%w %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(payload)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Status != "" && out.Status != "success" {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedStatus, out.Status)
	}
	return out.GeneratedText, nil
}
