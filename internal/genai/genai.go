// Package genai provides text generation backends used by the model-backed intent classifier.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults for generation requests.
const (
	DefaultModel       = openai.ChatModelGPT4oMini
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrUnexpectedStatus  = errors.New("unexpected response status")
	ErrMissingAPIKey     = errors.New("OPENAI_API_KEY not set")
	ErrMissingEndpoint   = errors.New("generation endpoint not set")
)

// Request is a single text generation call.
type Request struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

// withDefaults fills unset sampling parameters.
func (r Request) withDefaults() Request {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature <= 0 {
		r.Temperature = DefaultTemperature
	}
	if r.TopP <= 0 {
		r.TopP = DefaultTopP
	}
	return r
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completions adapts the SDK completion service to chatService.
type completions struct {
	svc *openai.ChatCompletionService
}

func (c completions) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// OpenAIClient generates text through the OpenAI chat completions API.
type OpenAIClient struct {
	chat  chatService
	model openai.ChatModel
}

var _ Generator = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from options, falling back to OPENAI_API_KEY.
func NewOpenAIClient(opts ...Option) (*OpenAIClient, error) {
	cfg := applyOpts(opts)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	cli := openai.NewClient(reqOpts...)

	model := openai.ChatModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	slog.Debug("OpenAIClient created", "model", model, "endpoint_set", cfg.Endpoint != "")
	return &OpenAIClient{chat: completions{svc: &cli.Chat.Completions}, model: model}, nil
}

// Generate sends the prompt as a user message and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	req = req.withDefaults()

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	})
	if err != nil {
		slog.Error("OpenAIClient Generate failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}
