package models

import "time"

// ConversationState is the persisted dialog state of one conversation.
type ConversationState struct {
	ConversationID string      `json:"conversation_id"`
	FlowType       FlowType    `json:"flow_type"`
	State          DialogState `json:"state"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AwaitingApplicationID reports whether the conversation is waiting for an application ID.
func (s ConversationState) AwaitingApplicationID() bool {
	return s.State == StateAwaitingApplicationID
}
