package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"mcpchat/internal/approval"
	"mcpchat/internal/domain"
	"mcpchat/internal/protocol"
)

// CommandSender pushes commands toward the backend. Implemented by the
// transport client; a no-op warning is acceptable while disconnected.
type CommandSender interface {
	Send(cmd protocol.Command) error
}

// Directory is the conversation store behind the HTTP side-channel.
type Directory interface {
	Create(ctx context.Context) (string, error)
	List(ctx context.Context, limit int) ([]domain.ConversationSummary, error)
	Fetch(ctx context.Context, id string) (*domain.Conversation, error)
	Delete(ctx context.Context, id string) error
}

type pendingSend struct {
	content string
	images  []string
}

// Service owns the transcript, routes inbound events through the approval
// queue where needed, and turns user intents into protocol commands with
// optimistic local updates. Inbound events are applied from a single consumer
// loop (Run); user intents may arrive from other goroutines, so all state
// sits behind one mutex.
type Service struct {
	sender    CommandSender
	directory Directory
	approvals *approval.Queue
	logger    *slog.Logger

	mu             sync.Mutex
	transcript     *Transcript
	conversationID string
	settings       domain.Settings
	connState      domain.ConnState

	// First-message handling: exactly one conversation create may be in
	// flight; sends arriving meanwhile queue behind it in order.
	creating     bool
	pendingSends []pendingSend

	onChange func()
	onResync func()
}

// NewService wires the chat service.
func NewService(sender CommandSender, directory Directory, approvals *approval.Queue, logger *slog.Logger) *Service {
	return &Service{
		sender:     sender,
		directory:  directory,
		approvals:  approvals,
		logger:     logger,
		transcript: NewTranscript(),
		connState:  domain.ConnDisconnected,
	}
}

// SetOnChange registers a callback invoked after every transcript or
// connection mutation. Used by the UI to re-render.
func (s *Service) SetOnChange(fn func()) { s.onChange = fn }

// SetOnResync registers a callback invoked when a reconnect succeeds and
// externally cached state (conversation list, settings) must be refreshed.
func (s *Service) SetOnResync(fn func()) { s.onResync = fn }

func (s *Service) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Run consumes inbound events and connection-state transitions until ctx is
// cancelled or the event channel closes. This is the single consumer loop;
// events are applied strictly in arrival order.
func (s *Service) Run(ctx context.Context, events <-chan protocol.Event, states <-chan domain.ConnState) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.HandleEvent(ev)
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			s.HandleConnState(st)
		}
	}
}

// HandleEvent folds one inbound event into local state. Approval-shaped
// events pass through the approval queue to be stamped with a tool id; tool
// starts feed the queue's pending pool; everything else goes straight to the
// reducer.
func (s *Service) HandleEvent(ev protocol.Event) {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.notify()
	}()

	switch ev := ev.(type) {
	case protocol.ToolStartEvent:
		s.approvals.NotePendingTool(ev.ToolID)
		s.transcript.Apply(ev)
	case protocol.ApprovalRequestEvent:
		// The wire event's tool id is not trusted; pairing is by arrival
		// order against the pending pool.
		toolID := s.approvals.ConsumePendingTool()
		if toolID == "" {
			s.logger.Warn("approval request with no pending tool", "approval_id", ev.ApprovalID)
		}
		s.approvals.Enqueue(domain.ApprovalRequest{
			ApprovalID: ev.ApprovalID,
			ToolID:     toolID,
			ToolName:   ev.ToolName,
			Args:       ev.Args,
		})
		s.transcript.MarkPendingApproval(toolID)
	case protocol.SettingsUpdatedEvent:
		s.settings = ev.Settings
	default:
		s.transcript.Apply(ev)
	}
}

// HandleConnState reacts to transport transitions. Entering reconnecting
// closes all cursors: streams open when the connection dropped will never
// finish, and deltas after recovery belong to fresh starts. A successful
// reconnect triggers a resync of externally cached state.
func (s *Service) HandleConnState(state domain.ConnState) {
	s.mu.Lock()
	prev := s.connState
	s.connState = state

	if state == domain.ConnReconnecting {
		s.transcript.RetireCursors()
		s.approvals.Clear()
		s.logger.Info("connection lost, cleared streaming cursors")
	}
	s.mu.Unlock()

	if state == domain.ConnConnected && prev == domain.ConnReconnecting && s.onResync != nil {
		s.onResync()
	}
	s.notify()
}

// SendMessage optimistically appends a user turn and sends it. Before a
// conversation exists, messages queue behind a single in-flight create and
// flush in order once the identity is known.
func (s *Service) SendMessage(ctx context.Context, content string, images []string) {
	s.mu.Lock()
	s.transcript.Append(domain.NewUserMessage(content, imageAttachments(images)))

	if cid := s.conversationID; cid != "" {
		s.mu.Unlock()
		s.notify()
		s.send(protocol.ChatMessageCommand{Content: content, ConversationID: cid, Images: images})
		return
	}

	s.pendingSends = append(s.pendingSends, pendingSend{content: content, images: images})
	if s.creating {
		s.mu.Unlock()
		s.notify()
		return
	}
	s.creating = true
	s.mu.Unlock()
	s.notify()

	go s.createAndFlush(ctx)
}

func (s *Service) createAndFlush(ctx context.Context) {
	id, err := s.directory.Create(ctx)

	s.mu.Lock()
	s.creating = false
	queued := s.pendingSends
	s.pendingSends = nil

	if err != nil {
		s.logger.Error("conversation create failed", "error", err)
		s.transcript.Append(domain.NewSystemMessage(
			fmt.Sprintf("Failed to start conversation: %s", err), domain.SubtypeError))
		s.mu.Unlock()
		s.notify()
		return
	}

	s.conversationID = id
	s.mu.Unlock()
	s.notify()

	for _, p := range queued {
		s.send(protocol.ChatMessageCommand{Content: p.content, ConversationID: id, Images: p.images})
	}
}

// EditUserMessage rewrites the nth user turn: the local transcript truncates
// through the edited message and the backend regenerates the tail as a fresh
// event stream.
func (s *Service) EditUserMessage(messageID, newContent string) error {
	s.mu.Lock()
	cid := s.conversationID
	if cid == "" {
		s.mu.Unlock()
		return domain.NewDomainError("Chat.EditUserMessage", domain.ErrNoConversation, "")
	}
	turn := s.transcript.UserMessageIndex(messageID)
	if turn < 0 || !s.transcript.TruncateFromUserMessage(messageID, newContent) {
		s.mu.Unlock()
		return domain.NewDomainError("Chat.EditUserMessage", domain.ErrMessageNotFound, messageID)
	}
	s.mu.Unlock()
	s.notify()

	s.send(protocol.EditUserMessageCommand{
		ConversationID:   cid,
		UserMessageIndex: turn,
		NewContent:       newContent,
	})
	return nil
}

// StopGeneration aborts the in-flight response. The assistant cursor closes
// immediately; stopping must feel instant, so no server acknowledgement is
// awaited.
func (s *Service) StopGeneration() {
	s.mu.Lock()
	cid := s.conversationID
	s.transcript.CloseAssistantCursor()
	s.mu.Unlock()
	s.notify()

	if cid != "" {
		s.send(protocol.StopStreamCommand{ConversationID: cid})
	}
}

// Approve answers the current approval request, applies the transition
// locally and pops the queue head.
func (s *Service) Approve(approved bool) error {
	req, ok := s.approvals.Current()
	if !ok {
		return domain.NewDomainError("Chat.Approve", domain.ErrNoActiveApproval, "")
	}

	s.mu.Lock()
	s.transcript.ResolveApproval(req.ToolID, approved)
	s.mu.Unlock()
	s.notify()

	s.send(protocol.ApprovalResponseCommand{ApprovalID: req.ApprovalID, Approved: approved})
	s.approvals.DequeueCurrent()
	return nil
}

// UpdateSettings pushes a settings blob to the backend. The confirming
// settings_updated event refreshes the local copy.
func (s *Service) UpdateSettings(settings domain.Settings) {
	s.send(protocol.UpdateSettingsCommand{Settings: settings})
}

// StartNewChat creates a fresh conversation and resets local state.
func (s *Service) StartNewChat(ctx context.Context) error {
	id, err := s.directory.Create(ctx)
	if err != nil {
		return domain.WrapOp("Chat.StartNewChat", err)
	}

	s.mu.Lock()
	s.conversationID = id
	s.transcript.Reset()
	s.mu.Unlock()
	s.approvals.Clear()
	s.notify()
	return nil
}

// SelectConversation loads a stored conversation and replaces the working
// transcript. On failure local state is untouched: directory operations are
// all-or-nothing from the transcript's point of view.
func (s *Service) SelectConversation(ctx context.Context, id string) error {
	conv, err := s.directory.Fetch(ctx, id)
	if err != nil {
		return domain.WrapOp("Chat.SelectConversation", err)
	}

	s.mu.Lock()
	s.conversationID = conv.ConversationID
	s.transcript.Init(conv.Messages)
	s.mu.Unlock()
	s.approvals.Clear()
	s.notify()
	return nil
}

// DeleteConversation removes a stored conversation; if it is the open one,
// local state resets to a fresh draft.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.directory.Delete(ctx, id); err != nil {
		return domain.WrapOp("Chat.DeleteConversation", err)
	}

	s.mu.Lock()
	if s.conversationID == id {
		s.conversationID = ""
		s.transcript.Reset()
		s.approvals.Clear()
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// ResetConversation drops to a fresh draft without touching the store.
func (s *Service) ResetConversation() {
	s.mu.Lock()
	s.conversationID = ""
	s.transcript.Reset()
	s.mu.Unlock()
	s.approvals.Clear()
	s.notify()
}

// ListConversations returns sidebar summaries.
func (s *Service) ListConversations(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	return s.directory.List(ctx, limit)
}

// imageAttachments mirrors outgoing images as local attachment entries, so
// the optimistic user turn carries the same shape the directory serves back
// for stored conversations.
func imageAttachments(images []string) []domain.Attachment {
	if len(images) == 0 {
		return nil
	}
	atts := make([]domain.Attachment, 0, len(images))
	for _, img := range images {
		att := domain.Attachment{ID: domain.NewMessageID(), MediaType: "application/octet-stream"}
		if data, err := base64.StdEncoding.DecodeString(img); err == nil {
			att.MediaType = http.DetectContentType(data)
			att.Size = len(data)
		}
		atts = append(atts, att)
	}
	return atts
}

func (s *Service) send(cmd protocol.Command) {
	if err := s.sender.Send(cmd); err != nil {
		s.logger.Warn("command not sent", "command", string(cmd.CommandType()), "error", err)
	}
}

// Messages returns a copy of the current transcript.
func (s *Service) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// ConversationID returns the active conversation id, empty for a fresh draft.
func (s *Service) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Streaming reports whether an assistant response is currently streaming.
func (s *Service) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Streaming()
}

// ConnState returns the last observed transport state.
func (s *Service) ConnState() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

// CurrentApproval returns the approval request awaiting a user decision.
func (s *Service) CurrentApproval() (domain.ApprovalRequest, bool) {
	return s.approvals.Current()
}

// Settings returns the last settings blob confirmed by the backend.
func (s *Service) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}
