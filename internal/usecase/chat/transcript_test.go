package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/internal/domain"
	"mcpchat/internal/protocol"
)

func TestDeltasAppendInOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.AssistantStartEvent{})
	tr.Apply(protocol.TextDeltaEvent{Content: "Hel"})
	tr.Apply(protocol.TextDeltaEvent{Content: "lo"})
	tr.Apply(protocol.AssistantCompleteEvent{})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageAssistant, msgs[0].Type)
	assert.Equal(t, "Hello", msgs[0].Content)
}

func TestDuplicateAssistantStartIsIdempotent(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.AssistantStartEvent{})
	tr.Apply(protocol.AssistantStartEvent{})
	tr.Apply(protocol.TextDeltaEvent{Content: "one bubble"})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "one bubble", msgs[0].Content)
}

func TestOrphanDeltaSynthesizesSingleAssistant(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.TextDeltaEvent{Content: "lost "})
	tr.Apply(protocol.TextDeltaEvent{Content: "start"})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageAssistant, msgs[0].Type)
	assert.Equal(t, "lost start", msgs[0].Content)
	assert.True(t, msgs[0].IsStreaming)
}

func TestThinkingStreamCollapsesOnComplete(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ThinkingStartEvent{})
	tr.Apply(protocol.ThinkingDeltaEvent{Content: "hmm"})
	tr.Apply(protocol.ThinkingCompleteEvent{})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageThinking, msgs[0].Type)
	assert.Equal(t, "hmm", msgs[0].Content)
	assert.False(t, msgs[0].IsStreaming)
	assert.True(t, msgs[0].IsCollapsed)
}

func TestThinkingAndAssistantCursorsAreIndependent(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.AssistantStartEvent{})
	tr.Apply(protocol.ThinkingStartEvent{})
	tr.Apply(protocol.ThinkingDeltaEvent{Content: "reason"})
	tr.Apply(protocol.TextDeltaEvent{Content: "answer"})
	tr.Apply(protocol.ThinkingCompleteEvent{})
	tr.Apply(protocol.AssistantCompleteEvent{})

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "answer", msgs[0].Content)
	assert.Equal(t, "reason", msgs[1].Content)
}

func TestToolSessionLifecycle(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolSessionStartEvent{})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "read_file"})
	tr.Apply(protocol.ToolCompleteEvent{ToolID: "t1", ToolName: "read_file", Content: "ok"})
	tr.Apply(protocol.ToolSessionCompleteEvent{})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Tools, 1)
	assert.Equal(t, domain.ToolCompleted, msgs[0].Tools[0].Status)
	assert.Equal(t, "ok", msgs[0].Tools[0].Result)
	assert.Equal(t, domain.SessionCompleted, msgs[0].Status)
}

func TestSessionBlockedIfAnyToolBlocked(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolSessionStartEvent{})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "read_file"})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t2", ToolName: "run_command"})
	tr.Apply(protocol.ToolCompleteEvent{ToolID: "t1", ToolName: "read_file", Content: "ok"})
	tr.Apply(protocol.ToolBlockedEvent{ToolID: "t2", ToolName: "run_command"})
	tr.Apply(protocol.ToolSessionCompleteEvent{})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.SessionBlocked, msgs[0].Status)
}

func TestToolErrorAppendsSystemMessage(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolSessionStartEvent{})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "fetch"})
	tr.Apply(protocol.ToolErrorEvent{ToolID: "t1", ToolName: "fetch", Error: "timeout"})
	tr.Apply(protocol.ToolSessionCompleteEvent{})

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageSystem, msgs[1].Type)
	assert.Equal(t, domain.SubtypeError, msgs[1].Subtype)
	assert.Contains(t, msgs[1].Content, "fetch")
	assert.Contains(t, msgs[1].Content, "timeout")
	assert.Equal(t, domain.ToolBlocked, msgs[0].Tools[0].Status)
	assert.Equal(t, domain.SessionBlocked, msgs[0].Status)
}

func TestUnknownToolIDIsIgnored(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolSessionStartEvent{})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "read_file"})
	tr.Apply(protocol.ToolCompleteEvent{ToolID: "nope", ToolName: "read_file", Content: "x"})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.ToolPendingApproval, msgs[0].Tools[0].Status)
	assert.Equal(t, domain.SessionExecuting, msgs[0].Status)
}

func TestToolStartWithoutSessionIsDropped(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "read_file"})
	assert.Equal(t, 0, tr.Len())
}

func TestTerminalToolNotOverwritten(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolSessionStartEvent{})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "read_file"})
	tr.Apply(protocol.ToolCompleteEvent{ToolID: "t1", ToolName: "read_file", Content: "done"})
	tr.Apply(protocol.ToolBlockedEvent{ToolID: "t1", ToolName: "read_file"})

	msgs := tr.Messages()
	assert.Equal(t, domain.ToolCompleted, msgs[0].Tools[0].Status)
	assert.Equal(t, "done", msgs[0].Tools[0].Result)
}

func TestResolveApproval(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.ToolSessionStartEvent{})
	tr.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "run_command"})

	tr.ResolveApproval("t1", true)
	assert.Equal(t, domain.ToolExecuting, tr.Messages()[0].Tools[0].Status)

	tr2 := NewTranscript()
	tr2.Apply(protocol.ToolSessionStartEvent{})
	tr2.Apply(protocol.ToolStartEvent{ToolID: "t1", ToolName: "run_command"})

	tr2.ResolveApproval("t1", false)
	msgs := tr2.Messages()
	assert.Equal(t, domain.ToolBlocked, msgs[0].Tools[0].Status)
	assert.Equal(t, domain.SessionBlocked, msgs[0].Status)
}

func TestSystemAndErrorEvents(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.SystemReadyEvent{Message: "ready"})
	tr.Apply(protocol.ErrorEvent{Message: "boom"})

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.SubtypeInfo, msgs[0].Subtype)
	assert.Equal(t, domain.SubtypeError, msgs[1].Subtype)
}

func TestUserMessageIndexCountsUserTurnsOnly(t *testing.T) {
	tr := NewTranscript()
	u1 := domain.NewUserMessage("first", nil)
	u2 := domain.NewUserMessage("second", nil)
	tr.Append(domain.NewSystemMessage("ready", domain.SubtypeInfo))
	tr.Append(u1)
	tr.Apply(protocol.AssistantStartEvent{})
	tr.Apply(protocol.TextDeltaEvent{Content: "reply"})
	tr.Apply(protocol.AssistantCompleteEvent{})
	tr.Append(u2)

	assert.Equal(t, 0, tr.UserMessageIndex(u1.ID))
	assert.Equal(t, 1, tr.UserMessageIndex(u2.ID))
	assert.Equal(t, -1, tr.UserMessageIndex("missing"))
}

func TestTruncateFromUserMessage(t *testing.T) {
	tr := NewTranscript()
	u1 := domain.NewUserMessage("first", nil)
	u2 := domain.NewUserMessage("second", nil)
	tr.Append(u1)
	tr.Apply(protocol.AssistantStartEvent{})
	tr.Apply(protocol.TextDeltaEvent{Content: "answer one"})
	tr.Apply(protocol.AssistantCompleteEvent{})
	tr.Append(u2)
	tr.Apply(protocol.AssistantStartEvent{})
	require.Equal(t, 4, tr.Len())

	ok := tr.TruncateFromUserMessage(u2.ID, "second, revised")
	require.True(t, ok)

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "second, revised", msgs[2].Content)

	// Cursors cleared: a later delta opens a fresh message instead of
	// appending to the truncated one.
	tr.Apply(protocol.TextDeltaEvent{Content: "regenerated"})
	msgs = tr.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "regenerated", msgs[3].Content)
}

func TestTruncateUnknownIDReturnsFalse(t *testing.T) {
	tr := NewTranscript()
	tr.Append(domain.NewUserMessage("hi", nil))
	assert.False(t, tr.TruncateFromUserMessage("missing", "x"))
	assert.Equal(t, 1, tr.Len())
}

func TestInitClearsCursors(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(protocol.AssistantStartEvent{})

	tr.Init([]domain.Message{domain.NewUserMessage("loaded", nil)})
	tr.Apply(protocol.TextDeltaEvent{Content: "fresh"})

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "fresh", msgs[1].Content)
}
