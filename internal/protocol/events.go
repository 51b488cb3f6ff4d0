// Package protocol defines the wire vocabulary exchanged with the chat
// backend: inbound events (server→client) and outbound commands
// (client→server). Each frame is a single JSON object tagged by a literal
// "type" field; tag strings and field names are part of the wire contract.
package protocol

import (
	"encoding/json"

	"mcpchat/internal/domain"
)

// EventType tags inbound frames.
type EventType string

const (
	EventSystemReady         EventType = "system_ready"
	EventAssistantStart      EventType = "assistant_start"
	EventTextDelta           EventType = "text_delta"
	EventAssistantComplete   EventType = "assistant_complete"
	EventThinkingStart       EventType = "thinking_start"
	EventThinkingDelta       EventType = "thinking_delta"
	EventThinkingComplete    EventType = "thinking_complete"
	EventToolSessionStart    EventType = "tool_session_start"
	EventToolStart           EventType = "tool_start"
	EventToolComplete        EventType = "tool_complete"
	EventToolBlocked         EventType = "tool_blocked"
	EventToolError           EventType = "tool_error"
	EventToolSessionComplete EventType = "tool_session_complete"
	EventApprovalRequest     EventType = "approval_request"
	EventError               EventType = "error"
	EventSettingsUpdated     EventType = "settings_updated"
)

// Event is one server→client protocol message.
type Event interface {
	EventType() EventType
}

// SystemReadyEvent announces the backend is ready; typically the first event
// after connecting.
type SystemReadyEvent struct {
	Message string `json:"message"`
}

func (SystemReadyEvent) EventType() EventType { return EventSystemReady }

// AssistantStartEvent opens an assistant streaming turn.
type AssistantStartEvent struct{}

func (AssistantStartEvent) EventType() EventType { return EventAssistantStart }

// TextDeltaEvent carries one chunk of streamed assistant text.
type TextDeltaEvent struct {
	Content string `json:"content"`
}

func (TextDeltaEvent) EventType() EventType { return EventTextDelta }

// AssistantCompleteEvent closes the assistant streaming turn.
type AssistantCompleteEvent struct{}

func (AssistantCompleteEvent) EventType() EventType { return EventAssistantComplete }

// ThinkingStartEvent opens a reasoning stream.
type ThinkingStartEvent struct{}

func (ThinkingStartEvent) EventType() EventType { return EventThinkingStart }

// ThinkingDeltaEvent carries one chunk of streamed reasoning text.
type ThinkingDeltaEvent struct {
	Content string `json:"content"`
}

func (ThinkingDeltaEvent) EventType() EventType { return EventThinkingDelta }

// ThinkingCompleteEvent closes the reasoning stream.
type ThinkingCompleteEvent struct{}

func (ThinkingCompleteEvent) EventType() EventType { return EventThinkingComplete }

// ToolSessionStartEvent opens a grouped tool-execution session.
type ToolSessionStartEvent struct{}

func (ToolSessionStartEvent) EventType() EventType { return EventToolSessionStart }

// ToolStartEvent announces one tool invocation inside the open session.
type ToolStartEvent struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
}

func (ToolStartEvent) EventType() EventType { return EventToolStart }

// ToolCompleteEvent reports a tool finished with a result.
type ToolCompleteEvent struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
}

func (ToolCompleteEvent) EventType() EventType { return EventToolComplete }

// ToolBlockedEvent reports a tool was denied or blocked by policy.
type ToolBlockedEvent struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
}

func (ToolBlockedEvent) EventType() EventType { return EventToolBlocked }

// ToolErrorEvent reports a tool failed while executing.
type ToolErrorEvent struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
	Error    string `json:"error"`
}

func (ToolErrorEvent) EventType() EventType { return EventToolError }

// ToolSessionCompleteEvent closes the open tool session.
type ToolSessionCompleteEvent struct{}

func (ToolSessionCompleteEvent) EventType() EventType { return EventToolSessionComplete }

// ApprovalRequestEvent asks the user to approve or deny a tool invocation.
// The wire ToolID is not relied on for correlation; see the approval queue.
type ApprovalRequestEvent struct {
	ApprovalID string         `json:"approval_id"`
	ToolID     string         `json:"tool_id"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
}

func (ApprovalRequestEvent) EventType() EventType { return EventApprovalRequest }

// ErrorEvent surfaces a server-side error mid-stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() EventType { return EventError }

// SettingsUpdatedEvent confirms a settings change took effect.
type SettingsUpdatedEvent struct {
	Settings map[string]any `json:"settings"`
}

func (SettingsUpdatedEvent) EventType() EventType { return EventSettingsUpdated }

// DecodeEvent parses a raw frame into its typed event. Unknown tags return
// domain.ErrUnknownEventType and malformed JSON returns
// domain.ErrMalformedFrame; in both cases the caller drops the frame and
// keeps the connection open.
func DecodeEvent(raw []byte) (Event, error) {
	var env struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.NewDomainError("protocol.DecodeEvent", domain.ErrMalformedFrame, err.Error())
	}

	var (
		ev  Event
		err error
	)
	switch env.Type {
	case EventSystemReady:
		ev, err = decodeInto[SystemReadyEvent](raw)
	case EventAssistantStart:
		ev, err = decodeInto[AssistantStartEvent](raw)
	case EventTextDelta:
		ev, err = decodeInto[TextDeltaEvent](raw)
	case EventAssistantComplete:
		ev, err = decodeInto[AssistantCompleteEvent](raw)
	case EventThinkingStart:
		ev, err = decodeInto[ThinkingStartEvent](raw)
	case EventThinkingDelta:
		ev, err = decodeInto[ThinkingDeltaEvent](raw)
	case EventThinkingComplete:
		ev, err = decodeInto[ThinkingCompleteEvent](raw)
	case EventToolSessionStart:
		ev, err = decodeInto[ToolSessionStartEvent](raw)
	case EventToolStart:
		ev, err = decodeInto[ToolStartEvent](raw)
	case EventToolComplete:
		ev, err = decodeInto[ToolCompleteEvent](raw)
	case EventToolBlocked:
		ev, err = decodeInto[ToolBlockedEvent](raw)
	case EventToolError:
		ev, err = decodeInto[ToolErrorEvent](raw)
	case EventToolSessionComplete:
		ev, err = decodeInto[ToolSessionCompleteEvent](raw)
	case EventApprovalRequest:
		ev, err = decodeInto[ApprovalRequestEvent](raw)
	case EventError:
		ev, err = decodeInto[ErrorEvent](raw)
	case EventSettingsUpdated:
		ev, err = decodeInto[SettingsUpdatedEvent](raw)
	default:
		return nil, domain.NewDomainError("protocol.DecodeEvent", domain.ErrUnknownEventType, string(env.Type))
	}
	if err != nil {
		return nil, domain.NewDomainError("protocol.DecodeEvent", domain.ErrMalformedFrame, err.Error())
	}
	return ev, nil
}

// EncodeEvent serializes an event with its type tag. Used by tests and test
// servers; the client itself only decodes events.
func EncodeEvent(ev Event) ([]byte, error) {
	return marshalTagged(string(ev.EventType()), ev)
}

func decodeInto[T Event](raw []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// marshalTagged flattens v into an object and stamps the "type" tag, keeping
// the frame a single flat JSON object as the backend expects.
func marshalTagged(tag string, v any) ([]byte, error) {
	fields := map[string]any{}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
	}
	fields["type"] = tag
	return json.Marshal(fields)
}
