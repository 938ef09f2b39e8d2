package classifier

import (
	"context"
	"log/slog"

	"github.com/smartgov/exgratia/internal/models"
)

// FallbackClassifier tries a fallible classifier first and uses the rules on any failure.
type FallbackClassifier struct {
	primary  FallibleClassifier
	fallback Classifier
}

var _ Classifier = (*FallbackClassifier)(nil)

// NewFallbackClassifier composes primary with the rule-based classifier.
func NewFallbackClassifier(primary FallibleClassifier) *FallbackClassifier {
	return &FallbackClassifier{primary: primary, fallback: RuleBasedClassifier{}}
}

// Classify never fails; remote failures are logged as classification fallbacks.
func (c *FallbackClassifier) Classify(ctx context.Context, text string) models.Intent {
	intent, err := c.primary.TryClassify(ctx, text)
	if err == nil && intent.IsValid() {
		return intent
	}
	fallback := c.fallback.Classify(ctx, text)
	slog.Warn("classification fallback", "error", err, "intent", fallback)
	return fallback
}
