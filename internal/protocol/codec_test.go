package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/internal/domain"
)

func TestDecodeEventAllVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Event
	}{
		{"system_ready", `{"type":"system_ready","message":"ready"}`, SystemReadyEvent{Message: "ready"}},
		{"assistant_start", `{"type":"assistant_start"}`, AssistantStartEvent{}},
		{"text_delta", `{"type":"text_delta","content":"Hi"}`, TextDeltaEvent{Content: "Hi"}},
		{"assistant_complete", `{"type":"assistant_complete"}`, AssistantCompleteEvent{}},
		{"thinking_start", `{"type":"thinking_start"}`, ThinkingStartEvent{}},
		{"thinking_delta", `{"type":"thinking_delta","content":"hmm"}`, ThinkingDeltaEvent{Content: "hmm"}},
		{"thinking_complete", `{"type":"thinking_complete"}`, ThinkingCompleteEvent{}},
		{"tool_session_start", `{"type":"tool_session_start"}`, ToolSessionStartEvent{}},
		{"tool_start", `{"type":"tool_start","tool_id":"t1","tool_name":"search"}`, ToolStartEvent{ToolID: "t1", ToolName: "search"}},
		{"tool_complete", `{"type":"tool_complete","tool_id":"t1","tool_name":"search","content":"42"}`, ToolCompleteEvent{ToolID: "t1", ToolName: "search", Content: "42"}},
		{"tool_blocked", `{"type":"tool_blocked","tool_id":"t1","tool_name":"search"}`, ToolBlockedEvent{ToolID: "t1", ToolName: "search"}},
		{"tool_error", `{"type":"tool_error","tool_id":"t1","tool_name":"search","error":"boom"}`, ToolErrorEvent{ToolID: "t1", ToolName: "search", Error: "boom"}},
		{"tool_session_complete", `{"type":"tool_session_complete"}`, ToolSessionCompleteEvent{}},
		{"approval_request", `{"type":"approval_request","approval_id":"a1","tool_id":"t1","tool_name":"search","args":{"q":"go"}}`, ApprovalRequestEvent{ApprovalID: "a1", ToolID: "t1", ToolName: "search", Args: map[string]any{"q": "go"}}},
		{"error", `{"type":"error","message":"bad"}`, ErrorEvent{Message: "bad"}},
		{"settings_updated", `{"type":"settings_updated","settings":{"model":"x"}}`, SettingsUpdatedEvent{Settings: map[string]any{"model": "x"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
		})
	}
}

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		SystemReadyEvent{Message: "ready"},
		AssistantStartEvent{},
		TextDeltaEvent{Content: "Hello"},
		AssistantCompleteEvent{},
		ThinkingStartEvent{},
		ThinkingDeltaEvent{Content: "let me think"},
		ThinkingCompleteEvent{},
		ToolSessionStartEvent{},
		ToolStartEvent{ToolID: "t1", ToolName: "search"},
		ToolCompleteEvent{ToolID: "t1", ToolName: "search", Content: "ok"},
		ToolBlockedEvent{ToolID: "t1", ToolName: "search"},
		ToolErrorEvent{ToolID: "t1", ToolName: "search", Error: "nope"},
		ToolSessionCompleteEvent{},
		ApprovalRequestEvent{ApprovalID: "a1", ToolID: "t1", ToolName: "search", Args: map[string]any{"q": "go"}},
		ErrorEvent{Message: "bad"},
		SettingsUpdatedEvent{Settings: map[string]any{"k": "v"}},
	}

	for _, ev := range events {
		t.Run(string(ev.EventType()), func(t *testing.T) {
			raw, err := EncodeEvent(ev)
			require.NoError(t, err)

			got, err := DecodeEvent(raw)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	commands := []Command{
		ChatMessageCommand{Content: "hello", ConversationID: "c1"},
		ChatMessageCommand{Content: "look", ConversationID: "c1", Images: []string{"aGk="}},
		ApprovalResponseCommand{ApprovalID: "a1", Approved: true},
		ApprovalResponseCommand{ApprovalID: "a2", Approved: false},
		UpdateSettingsCommand{Settings: map[string]any{"model": "large"}},
		StopStreamCommand{ConversationID: "c1"},
		EditUserMessageCommand{ConversationID: "c1", UserMessageIndex: 2, NewContent: "again"},
	}

	for _, cmd := range commands {
		t.Run(string(cmd.CommandType()), func(t *testing.T) {
			raw, err := EncodeCommand(cmd)
			require.NoError(t, err)

			got, err := DecodeCommand(raw)
			require.NoError(t, err)
			assert.Equal(t, cmd, got)
		})
	}
}

// encode(decode(raw)) must reproduce the same object modulo key order.
func TestRawRoundTripModuloOrder(t *testing.T) {
	raws := []string{
		`{"type":"tool_start","tool_id":"t1","tool_name":"search"}`,
		`{"type":"approval_request","approval_id":"a1","tool_id":"t1","tool_name":"fs","args":{"path":"/tmp"}}`,
		`{"type":"text_delta","content":"chunk"}`,
	}

	for _, raw := range raws {
		ev, err := DecodeEvent([]byte(raw))
		require.NoError(t, err)

		out, err := EncodeEvent(ev)
		require.NoError(t, err)

		var want, got map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &want))
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Equal(t, want, got)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"totally_new_event","data":1}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownEventType))
}

func TestDecodeEventMalformed(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedFrame))
}

func TestDecodeCommandUnknownType(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"type":"make_coffee"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownCommandType))
}
