package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FallbackAssistantReply is appended verbatim when the model fails to
// produce a usable answer, so every user message still gets a reply.
// Exposed so callers can tell a degraded turn from a real one.
const FallbackAssistantReply = "I apologize, but I'm having trouble processing your message right now. Please try again."

// Message is an embedded value inside a conversation transcript, not an
// independent entity. Timestamp doubles as the UI key for per-message
// actions (read-aloud), so it is taken at append time.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation holds the full chat transcript for one document. A document
// has at most one active conversation; lookups always take the newest.
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Messages   []Message `json:"messages"`
	Language   Language  `json:"language"`
	CreatedAt  time.Time `json:"created_date"`
	UpdatedAt  time.Time `json:"updated_at"`
}
