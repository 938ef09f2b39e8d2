package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smartgov/exgratia/internal/genai"
	"github.com/smartgov/exgratia/internal/models"
)

// Remote call parameters.
const (
	DefaultRemoteTimeout = 10 * time.Second
	remoteMaxTokens      = 20
	remoteTemperature    = 0.3
)

const promptTemplate = `Analyze this message for a government disaster relief chatbot and classify the intent:
"%s"

Classify as ONE of: %s

Respond with ONLY the intent name.`

// BuildPrompt renders the classification prompt for text.
func BuildPrompt(text string) string {
	names := make([]string, len(models.AllIntents))
	for i, intent := range models.AllIntents {
		names[i] = string(intent)
	}
	return fmt.Sprintf(promptTemplate, text, strings.Join(names, ", "))
}

// RemoteClassifier asks a text generator to label the message.
type RemoteClassifier struct {
	gen     genai.Generator
	timeout time.Duration
}

var _ FallibleClassifier = (*RemoteClassifier)(nil)

// NewRemoteClassifier creates a model-backed classifier. A non-positive timeout uses DefaultRemoteTimeout.
func NewRemoteClassifier(gen genai.Generator, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteClassifier{gen: gen, timeout: timeout}
}

// TryClassify calls the generator once and validates its answer against the intent set.
func (c *RemoteClassifier) TryClassify(ctx context.Context, text string) (models.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.gen.Generate(ctx, genai.Request{
		Prompt:      BuildPrompt(text),
		MaxTokens:   remoteMaxTokens,
		Temperature: remoteTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("remote classify: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyOutput
	}
	intent, ok := models.ParseIntent(out)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidIntent, out)
	}
	slog.Debug("RemoteClassifier classified message", "intent", intent)
	return intent, nil
}
