package domain

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// MessageType discriminates transcript entries.
type MessageType string

const (
	MessageSystem      MessageType = "system"
	MessageUser        MessageType = "user"
	MessageAssistant   MessageType = "assistant"
	MessageThinking    MessageType = "thinking"
	MessageToolSession MessageType = "tool_session"
)

// Subtypes for system messages.
const (
	SubtypeInfo  = "info"
	SubtypeError = "error"
)

// ToolStatus is the lifecycle state of a single tool invocation.
type ToolStatus string

const (
	ToolPendingApproval ToolStatus = "pending_approval"
	ToolExecuting       ToolStatus = "executing"
	ToolCompleted       ToolStatus = "completed"
	ToolBlocked         ToolStatus = "blocked"
	ToolError           ToolStatus = "error"
)

// Terminal reports whether no further transition is allowed from s.
func (s ToolStatus) Terminal() bool {
	return s == ToolCompleted || s == ToolBlocked || s == ToolError
}

// SessionStatus is the aggregate state of a tool session.
type SessionStatus string

const (
	SessionExecuting SessionStatus = "executing"
	SessionCompleted SessionStatus = "completed"
	SessionBlocked   SessionStatus = "blocked"
)

// Attachment is an image attached to a user message. The URL points at the
// backend's conversation-image endpoint for historical attachments.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ToolInstance is one tool invocation inside a tool session.
type ToolInstance struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    ToolStatus     `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`
}

// Message is a single transcript entry. The variant is selected by Type and
// only that variant's fields are populated: Subtype for system entries,
// Attachments for user entries, Tools/Status for tool sessions and
// IsStreaming/IsCollapsed for thinking entries. This flat shape matches what
// the conversation directory serves, so stored and live entries share one type.
type Message struct {
	ID          string         `json:"id"`
	Type        MessageType    `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Content     string         `json:"content,omitempty"`
	Subtype     string         `json:"subtype,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Tools       []ToolInstance `json:"tools,omitempty"`
	Status      SessionStatus  `json:"status,omitempty"`
	IsStreaming bool           `json:"is_streaming,omitempty"`
	IsCollapsed bool           `json:"is_collapsed,omitempty"`
}

// NewMessageID generates a monotonic ULID. IDs are caller-generated and sort
// by creation time, which is all the transcript ordering contract needs.
func NewMessageID() string {
	now := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// NewSystemMessage creates a system entry with the given subtype.
func NewSystemMessage(content, subtype string) Message {
	return Message{
		ID:        NewMessageID(),
		Type:      MessageSystem,
		Timestamp: time.Now(),
		Content:   content,
		Subtype:   subtype,
	}
}

// NewUserMessage creates a user entry.
func NewUserMessage(content string, attachments []Attachment) Message {
	return Message{
		ID:          NewMessageID(),
		Type:        MessageUser,
		Timestamp:   time.Now(),
		Content:     content,
		Attachments: attachments,
	}
}

// NewAssistantMessage creates an empty assistant entry ready to receive
// streamed deltas.
func NewAssistantMessage() Message {
	return Message{
		ID:        NewMessageID(),
		Type:      MessageAssistant,
		Timestamp: time.Now(),
	}
}

// NewThinkingMessage creates an empty thinking entry in streaming state.
func NewThinkingMessage() Message {
	return Message{
		ID:          NewMessageID(),
		Type:        MessageThinking,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewToolSessionMessage creates an executing tool session with no tools yet.
func NewToolSessionMessage() Message {
	return Message{
		ID:        NewMessageID(),
		Type:      MessageToolSession,
		Timestamp: time.Now(),
		Tools:     make([]ToolInstance, 0),
		Status:    SessionExecuting,
	}
}
