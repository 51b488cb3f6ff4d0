package directory

import (
	"encoding/json"
	"fmt"
	"time"

	"mcpchat/internal/domain"
)

// Part is one stored agent-format message part. Conversations persisted by
// the agent runtime arrive as turns of parts rather than UI-shaped messages;
// Replay folds them into the same transcript entries live streaming produces.
type Part struct {
	PartKind   string          `json:"part_kind"`
	Content    json.RawMessage `json:"content"`
	Timestamp  string          `json:"timestamp"`
	ToolName   string          `json:"tool_name"`
	ToolCallID string          `json:"tool_call_id"`
	Args       map[string]any  `json:"args"`
}

const (
	partSystemPrompt = "system-prompt"
	partUserPrompt   = "user-prompt"
	partText         = "text"
	partThinking     = "thinking"
	partRetryPrompt  = "retry-prompt"
	partToolCall     = "tool-call"
	partToolReturn   = "tool-return"
)

// Replay transforms stored turns of parts into transcript messages. System
// prompts are dropped, thinking arrives settled and collapsed, retry prompts
// become system error entries, and tool-call/tool-return pairs keyed by
// tool_call_id fold into synthetic completed tool sessions.
func Replay(turns [][]Part) []domain.Message {
	messages := make([]domain.Message, 0, len(turns))
	// tool_call_id -> index of its session in messages
	sessions := map[string]int{}

	for _, parts := range turns {
		for _, part := range parts {
			switch part.PartKind {
			case partToolCall:
				if part.ToolCallID == "" {
					continue
				}
				if _, ok := sessions[part.ToolCallID]; ok {
					continue
				}
				session := domain.NewToolSessionMessage()
				session.Timestamp = part.time()
				session.Status = domain.SessionCompleted
				session.Tools = []domain.ToolInstance{{
					ID:        part.ToolCallID,
					Name:      part.ToolName,
					Status:    domain.ToolCompleted,
					Timestamp: part.time(),
					Args:      part.Args,
				}}
				sessions[part.ToolCallID] = len(messages)
				messages = append(messages, session)
			case partToolReturn:
				idx, ok := sessions[part.ToolCallID]
				if !ok {
					continue
				}
				for i := range messages[idx].Tools {
					if messages[idx].Tools[i].ID == part.ToolCallID {
						messages[idx].Tools[i].Result = part.text()
						break
					}
				}
			default:
				if msg, ok := replayPart(part); ok {
					messages = append(messages, msg)
				}
			}
		}
	}
	return messages
}

func replayPart(part Part) (domain.Message, bool) {
	var msg domain.Message
	switch part.PartKind {
	case partSystemPrompt:
		return msg, false
	case partUserPrompt:
		msg = domain.NewUserMessage(part.text(), nil)
	case partText:
		msg = domain.NewAssistantMessage()
		msg.Content = part.text()
		msg.IsStreaming = false
	case partThinking:
		msg = domain.NewThinkingMessage()
		msg.Content = part.text()
		msg.IsStreaming = false
		msg.IsCollapsed = true
	case partRetryPrompt:
		msg = domain.NewSystemMessage(fmt.Sprintf("Retry prompt: %s", part.text()), domain.SubtypeError)
	default:
		msg = domain.NewSystemMessage(part.text(), domain.SubtypeError)
	}
	msg.Timestamp = part.time()
	return msg, true
}

// text flattens the stored content: a JSON string directly, an array by
// joining its string items and fragment objects, anything else verbatim.
func (p Part) text() string {
	if len(p.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Content, &s); err == nil {
		return s
	}
	var items []json.RawMessage
	if err := json.Unmarshal(p.Content, &items); err == nil {
		out := ""
		for _, item := range items {
			var str string
			if json.Unmarshal(item, &str) == nil {
				out += str
				continue
			}
			var frag struct {
				Content string `json:"content"`
			}
			if json.Unmarshal(item, &frag) == nil && frag.Content != "" {
				out += frag.Content
			}
		}
		return out
	}
	return string(p.Content)
}

func (p Part) time() time.Time {
	if t, ok := parseTime(p.Timestamp); ok {
		return t
	}
	return time.Now()
}
