package domain

import "time"

// Conversation is the full transcript of one conversation as served by the
// backend. The client holds at most one working copy at a time.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Messages       []Message `json:"messages"`
}

// ConversationSummary is the sidebar listing shape: identity plus a short
// preview of the first user message.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
	Preview        string    `json:"preview"`
}

// Settings is the opaque settings blob exchanged with the backend. The client
// never interprets individual keys; it only round-trips them.
type Settings map[string]any
