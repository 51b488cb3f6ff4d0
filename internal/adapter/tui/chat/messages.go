// Package chat implements the Bubble Tea chat front end. It renders the
// transcript owned by the chat service and translates key presses into
// service operations; all protocol logic lives below it.
package chat

import "mcpchat/internal/domain"

// StateChangedMsg signals that the service mutated its state and the view
// must re-read the transcript.
type StateChangedMsg struct{}

// ResyncMsg signals a successful reconnect. Externally cached state is stale:
// messages in flight during the outage were lost, so the conversation list
// must be fetched again.
type ResyncMsg struct{}

// ConversationsLoadedMsg delivers sidebar summaries for the history overlay.
type ConversationsLoadedMsg struct {
	Summaries []domain.ConversationSummary
	Err       error
}

// ConversationSelectedMsg signals a conversation load finished.
type ConversationSelectedMsg struct {
	Err error
}

// ConversationDeletedMsg signals a delete finished.
type ConversationDeletedMsg struct {
	Err error
}

// NewChatMsg signals the new-conversation flow finished.
type NewChatMsg struct {
	Err error
}
