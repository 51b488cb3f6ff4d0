package directory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/internal/domain"
)

func TestReplayBasicTurns(t *testing.T) {
	turns := [][]Part{
		{
			{PartKind: "system-prompt", Content: json.RawMessage(`"You are helpful."`)},
			{PartKind: "user-prompt", Content: json.RawMessage(`"hello"`), Timestamp: "2026-08-30T10:00:00"},
		},
		{
			{PartKind: "thinking", Content: json.RawMessage(`"let me think"`)},
			{PartKind: "text", Content: json.RawMessage(`"hi there"`)},
		},
	}

	msgs := Replay(turns)
	require.Len(t, msgs, 3)

	assert.Equal(t, domain.MessageUser, msgs[0].Type)
	assert.Equal(t, "hello", msgs[0].Content)

	assert.Equal(t, domain.MessageThinking, msgs[1].Type)
	assert.False(t, msgs[1].IsStreaming)
	assert.True(t, msgs[1].IsCollapsed)

	assert.Equal(t, domain.MessageAssistant, msgs[2].Type)
	assert.Equal(t, "hi there", msgs[2].Content)
	assert.False(t, msgs[2].IsStreaming)
}

func TestReplayPairsToolCallAndReturn(t *testing.T) {
	turns := [][]Part{
		{
			{PartKind: "tool-call", ToolCallID: "tc1", ToolName: "read_file", Args: map[string]any{"path": "x"}},
		},
		{
			{PartKind: "tool-return", ToolCallID: "tc1", Content: json.RawMessage(`"file contents"`)},
		},
	}

	msgs := Replay(turns)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageToolSession, msgs[0].Type)
	assert.Equal(t, domain.SessionCompleted, msgs[0].Status)
	require.Len(t, msgs[0].Tools, 1)

	tool := msgs[0].Tools[0]
	assert.Equal(t, "tc1", tool.ID)
	assert.Equal(t, "read_file", tool.Name)
	assert.Equal(t, domain.ToolCompleted, tool.Status)
	assert.Equal(t, "file contents", tool.Result)
	assert.Equal(t, "x", tool.Args["path"])
}

func TestReplayOrphanToolReturnIsDropped(t *testing.T) {
	msgs := Replay([][]Part{{{PartKind: "tool-return", ToolCallID: "missing"}}})
	assert.Empty(t, msgs)
}

func TestReplayRetryPromptBecomesSystemError(t *testing.T) {
	msgs := Replay([][]Part{{{PartKind: "retry-prompt", Content: json.RawMessage(`"tool output invalid"`)}}})
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageSystem, msgs[0].Type)
	assert.Equal(t, domain.SubtypeError, msgs[0].Subtype)
	assert.Equal(t, "Retry prompt: tool output invalid", msgs[0].Content)
}

func TestReplayUnknownKindBecomesSystemError(t *testing.T) {
	msgs := Replay([][]Part{{{PartKind: "mystery", Content: json.RawMessage(`"??"`)}}})
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageSystem, msgs[0].Type)
	assert.Equal(t, domain.SubtypeError, msgs[0].Subtype)
}

func TestPartTextFlattensFragmentArrays(t *testing.T) {
	p := Part{Content: json.RawMessage(`["look at ", {"content": "this image"}]`)}
	assert.Equal(t, "look at this image", p.text())
}

func TestReplayDuplicateToolCallIgnored(t *testing.T) {
	turns := [][]Part{
		{
			{PartKind: "tool-call", ToolCallID: "tc1", ToolName: "a"},
			{PartKind: "tool-call", ToolCallID: "tc1", ToolName: "a"},
		},
	}
	msgs := Replay(turns)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Tools, 1)
}
