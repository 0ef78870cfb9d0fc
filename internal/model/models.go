// Package model defines the data exchanged with clients.
package model

import "github.com/google/uuid"

// Account summarises the entitlement and quota of the signed in user.
type Account struct {
	UserID           uuid.UUID `json:"user_id"`
	Username         string    `json:"username"`
	IsPremium        bool      `json:"is_premium"`
	Tier             string    `json:"tier"`
	HasPremiumAccess bool      `json:"has_premium_access"`
	QuestionsLeft    int       `json:"questions_left"`
	BonusQuestions   int       `json:"bonus_questions"`
}

// ClientFrame is a websocket frame sent by the browser. htmx's ws-send also
// adds a HEADERS field.
type ClientFrame struct {
	Type      string            `json:"type"`
	Content   string            `json:"content"`
	MessageID string            `json:"message_id"`
	Headers   map[string]string `json:"HEADERS"`
}

const (
	FrameAsk    = "ask"
	FrameUnlock = "unlock"
)

// EventKind tells a live client what changed.
type EventKind string

const (
	// EventMessage is a message that was just added.
	EventMessage EventKind = "message"
	// EventUpdate is a new state of a message already on screen.
	EventUpdate EventKind = "update"
	// EventAccount is a new account summary.
	EventAccount EventKind = "account"
	// EventNotice is a transient warning for one client, such as a rate
	// limit or an exhausted quota.
	EventNotice EventKind = "notice"
)

// Event is pushed to every live client of UserID.
type Event struct {
	UserID  uuid.UUID    `json:"user_id"`
	Kind    EventKind    `json:"kind"`
	Message *ChatMessage `json:"message,omitempty"`
	Account *Account     `json:"account,omitempty"`
	Text    string       `json:"text,omitempty"`
}
