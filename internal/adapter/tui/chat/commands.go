package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// waitForUpdate blocks on the service's change signal and re-arms after every
// delivery, keeping exactly one listener alive.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return StateChangedMsg{}
	}
}

// waitForResync blocks on the service's reconnect signal, like waitForUpdate
// but for the post-outage refresh of cached state.
func waitForResync(resyncs <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-resyncs
		return ResyncMsg{}
	}
}

func loadConversationsCmd(ctx context.Context, svc Service, limit int) tea.Cmd {
	return func() tea.Msg {
		summaries, err := svc.ListConversations(ctx, limit)
		return ConversationsLoadedMsg{Summaries: summaries, Err: err}
	}
}

func selectConversationCmd(ctx context.Context, svc Service, id string) tea.Cmd {
	return func() tea.Msg {
		return ConversationSelectedMsg{Err: svc.SelectConversation(ctx, id)}
	}
}

func deleteConversationCmd(ctx context.Context, svc Service, id string) tea.Cmd {
	return func() tea.Msg {
		return ConversationDeletedMsg{Err: svc.DeleteConversation(ctx, id)}
	}
}

func newChatCmd(ctx context.Context, svc Service) tea.Cmd {
	return func() tea.Msg {
		return NewChatMsg{Err: svc.StartNewChat(ctx)}
	}
}
