// Package models defines the core data structures for the ex-gratia assistant.
//
// It includes inbound transport events, outbound views and the API response
// envelope, which are shared across modules.
package models

import "time"

// EventKind distinguishes the three kinds of inbound transport events.
type EventKind string

const (
	// EventCommand is a slash command such as /start.
	EventCommand EventKind = "command"
	// EventCallback is a button or keypad selection carrying an ActionID.
	EventCallback EventKind = "callback"
	// EventText is free text typed by the user.
	EventText EventKind = "text"
)

// Command names understood by the dialog controller.
const (
	CommandStart = "start"
	CommandHelp  = "help"
)

// Event is an inbound message delivered by a transport.
type Event struct {
	ConversationID string    `json:"conversation_id"`
	Kind           EventKind `json:"kind"`
	// Payload holds the command name, callback ActionID or message text.
	Payload string    `json:"payload"`
	Time    time.Time `json:"time"`
	// MessageID is the transport's identifier for the inbound message, if any.
	MessageID string `json:"message_id,omitempty"`
}

// TextEvent builds a free-text event.
func TextEvent(conversationID, text string) Event {
	return Event{ConversationID: conversationID, Kind: EventText, Payload: text, Time: time.Now()}
}

// CallbackEvent builds a selection event.
func CallbackEvent(conversationID string, action ActionID) Event {
	return Event{ConversationID: conversationID, Kind: EventCallback, Payload: string(action), Time: time.Now()}
}

// CommandEvent builds a command event. The leading slash is not part of command.
func CommandEvent(conversationID, command string) Event {
	return Event{ConversationID: conversationID, Kind: EventCommand, Payload: command, Time: time.Now()}
}

// ActionID identifies a selectable action. The values double as Telegram callback data.
type ActionID string

const (
	ActionNorms  ActionID = "option_1"
	ActionApply  ActionID = "option_2"
	ActionStatus ActionID = "option_3"
	ActionHelp   ActionID = "help"
	ActionBack   ActionID = "back_to_menu"
)

// Action is one selectable button of a view.
type Action struct {
	ID    ActionID `json:"id"`
	Label string   `json:"label"`
}

// ViewKind names the view that produced a payload; transports and tests use it, users never see it.
type ViewKind string

const (
	ViewWelcome        ViewKind = "welcome"
	ViewNorms          ViewKind = "norms"
	ViewProcedure      ViewKind = "procedure"
	ViewStatusPrompt   ViewKind = "status_prompt"
	ViewStatusFound    ViewKind = "status_found"
	ViewStatusNotFound ViewKind = "status_not_found"
	ViewHelp           ViewKind = "help"
	ViewFallback       ViewKind = "fallback"
	ViewLookupError    ViewKind = "lookup_error"
)

// View is a presentation payload: text plus ordered actions.
type View struct {
	Kind    ViewKind `json:"kind"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// HasAction reports whether the view offers the given action.
func (v View) HasAction(id ActionID) bool {
	for _, a := range v.Actions {
		if a.ID == id {
			return true
		}
	}
	return false
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates data was successfully recorded via API.
	APIStatusRecorded APIStatus = "recorded"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Recorded creates a recorded API response carrying the stored entity.
func Recorded(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRecorded).
		WithResult(result).
		Build()
}
