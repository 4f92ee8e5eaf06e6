package models

// Conversation roles understood by the upstream chat API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is a single message in a conversation, oldest first.
// Turns are immutable once handed to the completion source.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamEvent is one unit written to the client as a `data:` frame.
// Exactly one event per request carries Done; no event follows it.
type StreamEvent struct {
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Done    bool   `json:"done,omitempty"`
}
