package domain

import "time"

// ConversationMessage is one persisted chat message with its attached RAG
// artifacts. Sources and Metadata are empty for user messages.
type ConversationMessage struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Sources        []SourceSummary `json:"sources,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConversationSummary is the list view of a stored conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Feedback is a user rating of one assistant message.
type Feedback struct {
	FeedbackID     string    `json:"feedback_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatResult is a pipeline result plus the request correlation fields the
// chat service attaches.
type ChatResult struct {
	PipelineResult
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Timestamp      time.Time `json:"timestamp"`
}
