// Package chat contains the client-side conversation state machine: a
// transcript reducer that folds the inbound event stream into typed message
// entries, and the service that drives outbound commands around it.
package chat

import (
	"fmt"
	"time"

	"mcpchat/internal/domain"
	"mcpchat/internal/protocol"
)

// Transcript folds inbound events into an ordered message list plus the
// streaming cursors that decide where deltas attach. It is not safe for
// concurrent use: the service applies events from a single consumer loop and
// everything else reads through the accessor.
type Transcript struct {
	messages []domain.Message

	// Cursors are non-empty only while the corresponding stream is open.
	// At most one of each is open at a time.
	assistantID   string
	thinkingID    string
	toolSessionID string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]domain.Message, 0)}
}

// Apply folds one event into the transcript. Events that reference unknown
// ids or arrive without their required cursor are dropped: the transport
// offers no redelivery, and partial data beats a crash.
func (t *Transcript) Apply(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.SystemReadyEvent:
		t.messages = append(t.messages, domain.NewSystemMessage(ev.Message, domain.SubtypeInfo))
	case protocol.AssistantStartEvent:
		t.openAssistant()
	case protocol.TextDeltaEvent:
		t.appendAssistantDelta(ev.Content)
	case protocol.AssistantCompleteEvent:
		t.closeAssistant()
	case protocol.ThinkingStartEvent:
		t.openThinking()
	case protocol.ThinkingDeltaEvent:
		t.appendThinkingDelta(ev.Content)
	case protocol.ThinkingCompleteEvent:
		t.closeThinking()
	case protocol.ToolSessionStartEvent:
		t.openToolSession()
	case protocol.ToolStartEvent:
		t.addTool(ev.ToolID, ev.ToolName)
	case protocol.ToolCompleteEvent:
		t.resolveTool(ev.ToolID, domain.ToolCompleted, domain.SessionCompleted, ev.Content)
	case protocol.ToolBlockedEvent:
		t.resolveTool(ev.ToolID, domain.ToolBlocked, domain.SessionBlocked, "")
	case protocol.ToolErrorEvent:
		t.messages = append(t.messages,
			domain.NewSystemMessage(fmt.Sprintf("Tool %s failed: %s", ev.ToolName, ev.Error), domain.SubtypeError))
		t.resolveTool(ev.ToolID, domain.ToolBlocked, domain.SessionBlocked, "")
	case protocol.ToolSessionCompleteEvent:
		t.closeToolSession()
	case protocol.ErrorEvent:
		t.messages = append(t.messages, domain.NewSystemMessage(ev.Message, domain.SubtypeError))
	}
}

func (t *Transcript) openAssistant() {
	if t.assistantID != "" {
		return // duplicate start, keep the open bubble
	}
	msg := domain.NewAssistantMessage()
	msg.IsStreaming = true
	t.messages = append(t.messages, msg)
	t.assistantID = msg.ID
}

func (t *Transcript) closeAssistant() {
	if i := t.indexOf(t.assistantID); i >= 0 {
		t.messages[i].IsStreaming = false
	}
	t.assistantID = ""
}

func (t *Transcript) appendAssistantDelta(content string) {
	// Servers must not send deltas without a start, but tolerate it by
	// synthesizing the assistant message the start would have created.
	if t.assistantID == "" {
		t.openAssistant()
	}
	if i := t.indexOf(t.assistantID); i >= 0 {
		t.messages[i].Content += content
	}
}

func (t *Transcript) openThinking() {
	if t.thinkingID != "" {
		return
	}
	msg := domain.NewThinkingMessage()
	t.messages = append(t.messages, msg)
	t.thinkingID = msg.ID
}

func (t *Transcript) appendThinkingDelta(content string) {
	if t.thinkingID == "" {
		t.openThinking()
	}
	if i := t.indexOf(t.thinkingID); i >= 0 {
		t.messages[i].Content += content
	}
}

func (t *Transcript) closeThinking() {
	if t.thinkingID == "" {
		return
	}
	if i := t.indexOf(t.thinkingID); i >= 0 {
		t.messages[i].IsStreaming = false
		// Reasoning collapses by default once it stops streaming.
		t.messages[i].IsCollapsed = true
	}
	t.thinkingID = ""
}

func (t *Transcript) openToolSession() {
	if t.toolSessionID != "" {
		return
	}
	msg := domain.NewToolSessionMessage()
	t.messages = append(t.messages, msg)
	t.toolSessionID = msg.ID
}

func (t *Transcript) addTool(toolID, toolName string) {
	i := t.indexOf(t.toolSessionID)
	if t.toolSessionID == "" || i < 0 {
		return // tool_start outside a session is dropped
	}
	t.messages[i].Tools = append(t.messages[i].Tools, domain.ToolInstance{
		ID:        toolID,
		Name:      toolName,
		Status:    domain.ToolPendingApproval,
		Timestamp: time.Now(),
	})
}

// resolveTool moves a tool in the open session to a terminal status and
// stamps the session with the matching aggregate status. Unknown tool ids and
// already-terminal tools are left untouched.
func (t *Transcript) resolveTool(toolID string, status domain.ToolStatus, session domain.SessionStatus, result string) {
	i := t.indexOf(t.toolSessionID)
	if t.toolSessionID == "" || i < 0 {
		return
	}
	found := false
	for j := range t.messages[i].Tools {
		tool := &t.messages[i].Tools[j]
		if tool.ID != toolID || tool.Status.Terminal() {
			continue
		}
		tool.Status = status
		if result != "" {
			tool.Result = result
		}
		found = true
	}
	if found {
		t.messages[i].Status = session
	}
}

func (t *Transcript) closeToolSession() {
	i := t.indexOf(t.toolSessionID)
	if t.toolSessionID == "" {
		return
	}
	if i >= 0 {
		status := domain.SessionCompleted
		for _, tool := range t.messages[i].Tools {
			if tool.Status == domain.ToolBlocked {
				status = domain.SessionBlocked
				break
			}
		}
		t.messages[i].Status = status
	}
	t.toolSessionID = ""
}

func (t *Transcript) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// MarkPendingApproval re-stamps the tool with the given id as awaiting
// approval, wherever its session sits in the transcript. The status was
// already set by tool_start; this covers requests arriving after the session
// cursor moved on.
func (t *Transcript) MarkPendingApproval(toolID string) {
	if toolID == "" {
		return
	}
	for i := range t.messages {
		if t.messages[i].Type != domain.MessageToolSession {
			continue
		}
		for j := range t.messages[i].Tools {
			tool := &t.messages[i].Tools[j]
			if tool.ID == toolID && !tool.Status.Terminal() {
				tool.Status = domain.ToolPendingApproval
				return
			}
		}
	}
}

// ResolveApproval applies the user's answer locally: approved tools move to
// executing, denied ones to blocked. The server's own tool_blocked /
// tool_complete events confirm later.
func (t *Transcript) ResolveApproval(toolID string, approved bool) {
	for i := range t.messages {
		if t.messages[i].Type != domain.MessageToolSession {
			continue
		}
		for j := range t.messages[i].Tools {
			tool := &t.messages[i].Tools[j]
			if tool.ID != toolID || tool.Status != domain.ToolPendingApproval {
				continue
			}
			if approved {
				tool.Status = domain.ToolExecuting
			} else {
				tool.Status = domain.ToolBlocked
				t.messages[i].Status = domain.SessionBlocked
			}
			return
		}
	}
}

// Append adds a locally-created message (optimistic user turn, local notice).
func (t *Transcript) Append(msg domain.Message) {
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []domain.Message {
	cp := make([]domain.Message, len(t.messages))
	copy(cp, t.messages)
	return cp
}

// Len returns the number of transcript entries.
func (t *Transcript) Len() int { return len(t.messages) }

// Init replaces the transcript with loaded history and clears all cursors.
func (t *Transcript) Init(messages []domain.Message) {
	t.messages = make([]domain.Message, len(messages))
	copy(t.messages, messages)
	t.ClearCursors()
}

// Reset empties the transcript and clears all cursors.
func (t *Transcript) Reset() {
	t.messages = t.messages[:0]
	t.ClearCursors()
}

// ClearCursors zeroes every cursor without touching messages. Used when the
// message list itself is being replaced or truncated.
func (t *Transcript) ClearCursors() {
	t.assistantID = ""
	t.thinkingID = ""
	t.toolSessionID = ""
}

// RetireCursors settles any open streaming entries and closes their cursors.
// Used on reconnect, where open streams will never finish and recovery
// traffic must open fresh entries.
func (t *Transcript) RetireCursors() {
	t.closeAssistant()
	t.closeThinking()
	t.toolSessionID = ""
}

// CloseAssistantCursor force-closes only the assistant stream (stop).
func (t *Transcript) CloseAssistantCursor() {
	t.closeAssistant()
}

// Streaming reports whether an assistant response is currently open.
func (t *Transcript) Streaming() bool {
	return t.assistantID != ""
}

// UserMessageIndex returns the ordinal of the given message among user
// messages only (the backend addresses history by logical user turn), or -1
// if the id is not a user message in this transcript.
func (t *Transcript) UserMessageIndex(messageID string) int {
	ordinal := 0
	for _, msg := range t.messages {
		if msg.Type != domain.MessageUser {
			continue
		}
		if msg.ID == messageID {
			return ordinal
		}
		ordinal++
	}
	return -1
}

// TruncateFromUserMessage cuts the transcript to end at the given user
// message, replaces its content, and clears all cursors. The backend
// regenerates everything downstream as a fresh event stream. Returns false if
// the id is unknown.
func (t *Transcript) TruncateFromUserMessage(messageID, newContent string) bool {
	for i := range t.messages {
		if t.messages[i].ID != messageID {
			continue
		}
		t.messages = t.messages[:i+1]
		t.messages[i].Content = newContent
		t.ClearCursors()
		return true
	}
	return false
}
