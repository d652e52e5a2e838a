package models

import "time"

// Sender identifies who produced a conversation turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ConversationTurn is one immutable message in a namespace's chat history.
type ConversationTurn struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
