package protocol

import (
	"encoding/json"

	"mcpchat/internal/domain"
)

// CommandType tags outbound frames.
type CommandType string

const (
	CommandChatMessage      CommandType = "chat_message"
	CommandApprovalResponse CommandType = "approval_response"
	CommandUpdateSettings   CommandType = "update_settings"
	CommandStopStream       CommandType = "stop_stream"
	CommandEditUserMessage  CommandType = "edit_user_message"
)

// Command is one client→server protocol message.
type Command interface {
	CommandType() CommandType
}

// ChatMessageCommand submits a user turn. Images are optional base64 payloads
// attached to the turn.
type ChatMessageCommand struct {
	Content        string   `json:"content"`
	ConversationID string   `json:"conversation_id"`
	Images         []string `json:"images,omitempty"`
}

func (ChatMessageCommand) CommandType() CommandType { return CommandChatMessage }

// ApprovalResponseCommand answers a pending approval request.
type ApprovalResponseCommand struct {
	ApprovalID string `json:"approval_id"`
	Approved   bool   `json:"approved"`
}

func (ApprovalResponseCommand) CommandType() CommandType { return CommandApprovalResponse }

// UpdateSettingsCommand pushes a settings blob to the backend.
type UpdateSettingsCommand struct {
	Settings map[string]any `json:"settings"`
}

func (UpdateSettingsCommand) CommandType() CommandType { return CommandUpdateSettings }

// StopStreamCommand aborts generation for the given conversation.
type StopStreamCommand struct {
	ConversationID string `json:"conversation_id"`
}

func (StopStreamCommand) CommandType() CommandType { return CommandStopStream }

// EditUserMessageCommand replaces the nth user turn and regenerates the tail.
// UserMessageIndex counts user turns only, not transcript positions; the
// backend addresses history by logical turn.
type EditUserMessageCommand struct {
	ConversationID   string `json:"conversation_id"`
	UserMessageIndex int    `json:"user_message_index"`
	NewContent       string `json:"new_content"`
}

func (EditUserMessageCommand) CommandType() CommandType { return CommandEditUserMessage }

// EncodeCommand serializes a command with its type tag.
func EncodeCommand(cmd Command) ([]byte, error) {
	return marshalTagged(string(cmd.CommandType()), cmd)
}

// DecodeCommand parses a raw frame into its typed command. The client never
// receives commands; this is the encode inverse used for round-trip checks
// and test servers.
func DecodeCommand(raw []byte) (Command, error) {
	var env struct {
		Type CommandType `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.NewDomainError("protocol.DecodeCommand", domain.ErrMalformedFrame, err.Error())
	}

	var (
		cmd Command
		err error
	)
	switch env.Type {
	case CommandChatMessage:
		cmd, err = decodeCommandInto[ChatMessageCommand](raw)
	case CommandApprovalResponse:
		cmd, err = decodeCommandInto[ApprovalResponseCommand](raw)
	case CommandUpdateSettings:
		cmd, err = decodeCommandInto[UpdateSettingsCommand](raw)
	case CommandStopStream:
		cmd, err = decodeCommandInto[StopStreamCommand](raw)
	case CommandEditUserMessage:
		cmd, err = decodeCommandInto[EditUserMessageCommand](raw)
	default:
		return nil, domain.NewDomainError("protocol.DecodeCommand", domain.ErrUnknownCommandType, string(env.Type))
	}
	if err != nil {
		return nil, domain.NewDomainError("protocol.DecodeCommand", domain.ErrMalformedFrame, err.Error())
	}
	return cmd, nil
}

func decodeCommandInto[T Command](raw []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}
