package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartgov/exgratia/internal/genai"
	"github.com/smartgov/exgratia/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleBasedClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Intent
	}{
		{"greeting", "Hello there", models.IntentGreeting},
		{"namaste", "NAMASTE", models.IntentGreeting},
		{"norms before procedure", "What is the eligibility and how do I apply?", models.IntentExGratiaNorms},
		{"norms amount", "How much money for house damage?", models.IntentExGratiaNorms},
		{"procedure documents", "What documents do I need?", models.IntentApplicationProcedure},
		{"procedure gram panchayat", "gram panchayat", models.IntentApplicationProcedure},
		{"status phrase", "track 23LDM786", models.IntentStatusCheck},
		{"status bare id", "23LDM786", models.IntentStatusCheck},
		{"status pending", "is it pending", models.IntentStatusCheck},
		{"help", "help me", models.IntentHelp},
		{"help phone", "call phone", models.IntentHelp},
		{"question about proof", "what proof?", models.IntentApplicationProcedure},
		{"question about rupee", "why rupee", models.IntentExGratiaNorms},
		{"other", "ok bye", models.IntentOther},
		{"empty", "", models.IntentOther},
	}

	c := NewRuleBasedClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.text))
		})
	}
}

func TestRuleBasedClassify_Idempotent(t *testing.T) {
	c := NewRuleBasedClassifier()
	for _, text := range []string{"Hello", "track 23LDM786", "ok bye", "What documents do I need?"} {
		first := c.Classify(context.Background(), text)
		second := c.Classify(context.Background(), text)
		assert.Equal(t, first, second, "text=%q", text)
	}
}

func TestRuleBasedClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("crop loss"), Classify("CROP LOSS"))
	assert.Equal(t, Classify("ward office"), Classify("Ward Office"))
}

func TestRulesOrder(t *testing.T) {
	got := Rules()
	require.NotEmpty(t, got)
	assert.Equal(t, models.IntentGreeting, got[0].Intent)
	assert.Equal(t, models.IntentExGratiaNorms, got[1].Intent)
	assert.Equal(t, models.IntentApplicationProcedure, got[2].Intent)
	assert.Equal(t, models.IntentStatusCheck, got[3].Intent)
	assert.Equal(t, models.IntentHelp, got[4].Intent)

	// Mutating the copy leaves the table intact.
	got[0] = Rule{Intent: models.IntentOther}
	assert.Equal(t, models.IntentGreeting, Rules()[0].Intent)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("where is my money")
	assert.Contains(t, p, `"where is my money"`)
	assert.Contains(t, p, "exgratia_norms, application_procedure, status_check, apply_start, greeting, help, other")
	assert.True(t, strings.HasSuffix(p, "Respond with ONLY the intent name."))
}

// stubGenerator implements genai.Generator for testing.
type stubGenerator struct {
	out   string
	err   error
	delay time.Duration
	req   genai.Request
}

func (s *stubGenerator) Generate(ctx context.Context, req genai.Request) (string, error) {
	s.req = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.out, s.err
}

func TestRemoteClassifier(t *testing.T) {
	gen := &stubGenerator{out: "  Status_Check\n"}
	c := NewRemoteClassifier(gen, time.Second)

	intent, err := c.TryClassify(context.Background(), "where is my application")
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusCheck, intent)
	assert.Equal(t, 20, gen.req.MaxTokens)
	assert.InDelta(t, 0.3, gen.req.Temperature, 1e-9)
	assert.Contains(t, gen.req.Prompt, "where is my application")
}

func TestRemoteClassifier_Failures(t *testing.T) {
	tests := []struct {
		name    string
		gen     *stubGenerator
		wantErr error
	}{
		{"unknown label", &stubGenerator{out: "weather"}, ErrInvalidIntent},
		{"blank output", &stubGenerator{out: "  "}, ErrEmptyOutput},
		{"non-success status", &stubGenerator{err: genai.ErrUnexpectedStatus}, genai.ErrUnexpectedStatus},
		{"timeout", &stubGenerator{out: "greeting", delay: time.Second}, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewRemoteClassifier(tt.gen, 20*time.Millisecond)
			_, err := c.TryClassify(context.Background(), "hello")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFallbackClassifier_UsesPrimary(t *testing.T) {
	c := NewFallbackClassifier(NewRemoteClassifier(&stubGenerator{out: "apply_start"}, time.Second))
	assert.Equal(t, models.IntentApplyStart, c.Classify(context.Background(), "hello"))
}

func TestFallbackClassifier_FallsBackToRules(t *testing.T) {
	failures := []*stubGenerator{
		{err: errors.New("connection refused")},
		{err: genai.ErrUnexpectedStatus},
		{out: "not-an-intent"},
		{out: ""},
		{out: "greeting", delay: time.Second},
	}
	for _, gen := range failures {
		c := NewFallbackClassifier(NewRemoteClassifier(gen, 20*time.Millisecond))
		assert.Equal(t, models.IntentExGratiaNorms, c.Classify(context.Background(), "crop loss"))
	}
}

func TestFunc(t *testing.T) {
	var c Classifier = Func(func(context.Context, string) models.Intent { return models.IntentHelp })
	assert.Equal(t, models.IntentHelp, c.Classify(context.Background(), "anything"))
}
