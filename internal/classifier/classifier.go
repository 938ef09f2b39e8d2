// Package classifier maps free-text citizen messages to a fixed set of intents.
//
// The rule-based classifier is a pure fold over a static ordered rule table.
// A model-backed classifier can be layered on top through FallbackClassifier,
// which never surfaces a remote failure to callers.
package classifier

import (
	"context"
	"errors"

	"github.com/smartgov/exgratia/internal/models"
)

var (
	// ErrInvalidIntent is returned when a model answers with a label outside the intent set.
	ErrInvalidIntent = errors.New("model returned an unknown intent")
	// ErrEmptyOutput is returned when a model answers with blank text.
	ErrEmptyOutput = errors.New("model returned empty output")
)

// Classifier labels a message with exactly one intent. Implementations never fail.
type Classifier interface {
	Classify(ctx context.Context, text string) models.Intent
}

// FallibleClassifier labels a message but may fail, for example on a network error.
type FallibleClassifier interface {
	TryClassify(ctx context.Context, text string) (models.Intent, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, text string) models.Intent

// Classify calls f.
func (f Func) Classify(ctx context.Context, text string) models.Intent {
	return f(ctx, text)
}
