package models

// DialogState represents the state of one conversation in the dialog state machine.
type DialogState string

// Dialog states. A conversation with no stored state is idle.
const (
	StateIdle                  DialogState = "idle"
	StateAwaitingApplicationID DialogState = "awaiting_application_id"
)

// IsValid reports whether s is a known dialog state.
func (s DialogState) IsValid() bool {
	switch s {
	case StateIdle, StateAwaitingApplicationID:
		return true
	default:
		return false
	}
}

// FlowType namespaces stored conversation state so several flows can share one table.
type FlowType string

// FlowTypeExGratia is the only flow the assistant runs today.
const FlowTypeExGratia FlowType = "exgratia"
