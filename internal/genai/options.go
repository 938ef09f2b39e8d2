package genai

import "time"

// Opts holds configuration for generation clients.
type Opts struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Option defines a configuration option for generation clients.
type Option func(*Opts)

// WithAPIKey sets the API key used by the OpenAI client.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithEndpoint sets the generation endpoint. For the OpenAI client it replaces the base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

func applyOpts(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
