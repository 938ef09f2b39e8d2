package models

import "strings"

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentGreeting             Intent = "greeting"
	IntentExGratiaNorms        Intent = "exgratia_norms"
	IntentApplicationProcedure Intent = "application_procedure"
	IntentStatusCheck          Intent = "status_check"
	IntentApplyStart           Intent = "apply_start"
	IntentHelp                 Intent = "help"
	IntentOther                Intent = "other"
)

// AllIntents lists every valid intent in the order used when prompting a model.
var AllIntents = []Intent{
	IntentExGratiaNorms,
	IntentApplicationProcedure,
	IntentStatusCheck,
	IntentApplyStart,
	IntentGreeting,
	IntentHelp,
	IntentOther,
}

// IsValid reports whether i belongs to the fixed intent set.
func (i Intent) IsValid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIntent normalises raw model output into an Intent.
// The second return value is false when the text is not a known intent.
func ParseIntent(raw string) (Intent, bool) {
	intent := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if !intent.IsValid() {
		return "", false
	}
	return intent, true
}
