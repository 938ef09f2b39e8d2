package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/smartgov/exgratia/internal/models"
)

// Rule pairs an intent with a predicate over the lower-cased message.
type Rule struct {
	Intent models.Intent
	Match  func(lower string) bool
}

var (
	greetingPhrases = []string{
		"hello", "hi", "start", "hey", "namaste",
		"good morning", "good afternoon", "good evening",
	}
	normsPhrases = []string{
		"norms", "amount", "money", "eligibility", "how much", "rate", "compensation",
		"house damage", "crop loss", "livestock", "injury", "death", "relief amount",
		"sanction", "criteria", "eligible", "qualify", "entitle",
	}
	procedurePhrases = []string{
		"apply", "application", "procedure", "process", "how to", "documents",
		"submit", "steps", "gram panchayat", "ward office", "requirements",
		"form", "paperwork", "where to apply", "when to apply",
	}
	statusPhrases = []string{
		"status", "check", "track", "application id", "app id", "reference",
		"progress", "update", "approved", "pending", "rejected", "sanctioned",
	}
	helpPhrases = []string{
		"help", "support", "assist", "guidance", "information", "contact", "phone", "number",
	}

	questionWords = []string{"what", "how", "when", "where", "why", "which"}
	documentWords = []string{"document", "paper", "certificate", "proof"}
	moneyWords    = []string{"money", "amount", "rupee", "compensation"}

	// idShape is deliberately loose: any 6-12 character alphanumeric word counts.
	idShape = regexp.MustCompile(`\b[a-z0-9]{6,12}\b`)
)

// containsAny reports whether s contains at least one of the phrases.
func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func phrases(list []string) func(string) bool {
	return func(lower string) bool { return containsAny(lower, list) }
}

func question(domain []string) func(string) bool {
	return func(lower string) bool {
		return containsAny(lower, questionWords) && containsAny(lower, domain)
	}
}

// rules is evaluated top to bottom; the first match wins.
var rules = []Rule{
	{Intent: models.IntentGreeting, Match: phrases(greetingPhrases)},
	{Intent: models.IntentExGratiaNorms, Match: phrases(normsPhrases)},
	{Intent: models.IntentApplicationProcedure, Match: phrases(procedurePhrases)},
	{Intent: models.IntentStatusCheck, Match: func(lower string) bool {
		return containsAny(lower, statusPhrases) || idShape.MatchString(lower)
	}},
	{Intent: models.IntentHelp, Match: phrases(helpPhrases)},
	{Intent: models.IntentApplicationProcedure, Match: question(documentWords)},
	{Intent: models.IntentExGratiaNorms, Match: question(moneyWords)},
}

// Rules returns a copy of the rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// RuleBasedClassifier classifies by phrase and pattern rules. It holds no state.
type RuleBasedClassifier struct{}

var (
	_ Classifier         = RuleBasedClassifier{}
	_ FallibleClassifier = RuleBasedClassifier{}
)

// NewRuleBasedClassifier returns the static rule classifier.
func NewRuleBasedClassifier() RuleBasedClassifier {
	return RuleBasedClassifier{}
}

// Classify returns the intent of the first matching rule, or IntentOther.
func (RuleBasedClassifier) Classify(_ context.Context, text string) models.Intent {
	return Classify(text)
}

// TryClassify never fails.
func (RuleBasedClassifier) TryClassify(_ context.Context, text string) (models.Intent, error) {
	return Classify(text), nil
}

// Classify applies the static rule table to text.
func Classify(text string) models.Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.Match(lower) {
			return r.Intent
		}
	}
	return models.IntentOther
}
