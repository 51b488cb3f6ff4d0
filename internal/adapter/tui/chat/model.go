package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mcpchat/internal/domain"
)

// Service is the surface the TUI drives. Implemented by the chat service.
type Service interface {
	Messages() []domain.Message
	ConversationID() string
	ConnState() domain.ConnState
	Streaming() bool
	CurrentApproval() (domain.ApprovalRequest, bool)

	SendMessage(ctx context.Context, content string, images []string)
	StopGeneration()
	Approve(approved bool) error
	EditUserMessage(messageID, newContent string) error
	ListConversations(ctx context.Context, limit int) ([]domain.ConversationSummary, error)
	SelectConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	StartNewChat(ctx context.Context) error
}

var (
	styleUser      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleThinking  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	styleSystem    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleTool      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	styleApproval  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true).
			Border(lipgloss.RoundedBorder()).Padding(0, 1)
	styleStatus   = lipgloss.NewStyle().Faint(true)
	styleSelected = lipgloss.NewStyle().Reverse(true)
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx     context.Context
	svc     Service
	updates <-chan struct{}
	resyncs <-chan struct{}

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// History overlay state.
	historyVisible bool
	summaries      []domain.ConversationSummary
	historyIdx     int
	historyLimit   int

	// When set, enter submits an edit of this user message instead of a
	// new turn.
	editingID string

	notice   string
	quitting bool
}

// NewModel creates the root model. updates carries the service's change
// signal; the model re-reads service state on every tick of it. resyncs fires
// after a reconnect and triggers a reload of the cached conversation list.
func NewModel(ctx context.Context, svc Service, updates, resyncs <-chan struct{}, historyLimit int) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if historyLimit <= 0 {
		historyLimit = 50
	}

	return Model{
		ctx:          ctx,
		svc:          svc,
		updates:      updates,
		resyncs:      resyncs,
		input:        ta,
		spinner:      sp,
		historyLimit: historyLimit,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates), waitForResync(m.resyncs))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateChangedMsg:
		m.refreshTranscript()
		return m, waitForUpdate(m.updates)

	case ResyncMsg:
		// Cached summaries predate the outage; drop and re-fetch them.
		m.summaries = nil
		return m, tea.Batch(
			loadConversationsCmd(m.ctx, m.svc, m.historyLimit),
			waitForResync(m.resyncs),
		)

	case ConversationsLoadedMsg:
		if msg.Err != nil {
			m.notice = "History unavailable: " + msg.Err.Error()
			m.historyVisible = false
			return m, nil
		}
		m.summaries = msg.Summaries
		m.historyIdx = 0
		return m, nil

	case ConversationSelectedMsg:
		m.historyVisible = false
		if msg.Err != nil {
			m.notice = "Load failed: " + msg.Err.Error()
		} else {
			m.notice = ""
			m.refreshTranscript()
		}
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			m.notice = "Delete failed: " + msg.Err.Error()
			return m, nil
		}
		return m, loadConversationsCmd(m.ctx, m.svc, m.historyLimit)

	case NewChatMsg:
		if msg.Err != nil {
			m.notice = "New chat failed: " + msg.Err.Error()
		} else {
			m.notice = ""
			m.refreshTranscript()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.historyVisible {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Approval prompt takes priority over everything except quit.
	if _, pending := m.svc.CurrentApproval(); pending && !m.historyVisible {
		switch msg.String() {
		case "y", "Y":
			if err := m.svc.Approve(true); err != nil {
				m.notice = err.Error()
			}
			return m, nil
		case "n", "N":
			if err := m.svc.Approve(false); err != nil {
				m.notice = err.Error()
			}
			return m, nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	if m.historyVisible {
		return m.handleHistoryKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		if m.editingID != "" {
			m.editingID = ""
			m.input.Reset()
			m.notice = ""
			return m, nil
		}
		if m.svc.Streaming() {
			m.svc.StopGeneration()
		}
		return m, nil
	case "ctrl+n":
		return m, newChatCmd(m.ctx, m.svc)
	case "ctrl+h":
		m.historyVisible = true
		m.summaries = nil
		return m, loadConversationsCmd(m.ctx, m.svc, m.historyLimit)
	case "ctrl+e":
		return m.beginEditLastUserMessage()
	case "enter":
		return m.handleSubmit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.historyVisible = false
		return m, nil
	case "j", "down":
		if m.historyIdx < len(m.summaries)-1 {
			m.historyIdx++
		}
		return m, nil
	case "k", "up":
		if m.historyIdx > 0 {
			m.historyIdx--
		}
		return m, nil
	case "x":
		if m.historyIdx < len(m.summaries) {
			id := m.summaries[m.historyIdx].ConversationID
			return m, deleteConversationCmd(m.ctx, m.svc, id)
		}
		return m, nil
	case "enter":
		if m.historyIdx < len(m.summaries) {
			id := m.summaries[m.historyIdx].ConversationID
			return m, selectConversationCmd(m.ctx, m.svc, id)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	if m.editingID != "" {
		if err := m.svc.EditUserMessage(m.editingID, content); err != nil {
			m.notice = "Edit failed: " + err.Error()
			return m, nil
		}
		m.editingID = ""
		m.notice = ""
	} else {
		m.svc.SendMessage(m.ctx, content, nil)
	}

	m.input.Reset()
	m.refreshTranscript()
	return m, nil
}

func (m Model) beginEditLastUserMessage() (tea.Model, tea.Cmd) {
	msgs := m.svc.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == domain.MessageUser {
			m.editingID = msgs[i].ID
			m.input.SetValue(msgs[i].Content)
			m.notice = "Editing previous message (esc to cancel)"
			return m, nil
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if !m.ready {
		return "  Initializing..."
	}

	if m.historyVisible {
		return m.historyView()
	}

	parts := []string{m.viewport.View()}

	if req, pending := m.svc.CurrentApproval(); pending {
		parts = append(parts, m.approvalView(req))
	}

	parts = append(parts, m.input.View(), m.statusView())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) approvalView(req domain.ApprovalRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Allow tool %q to run? [y/n]", req.ToolName)
	if len(req.Args) > 0 {
		b.WriteString("\n")
		for k, v := range req.Args {
			fmt.Fprintf(&b, "  %s: %v\n", k, v)
		}
	}
	return styleApproval.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) historyView() string {
	var b strings.Builder
	b.WriteString(styleUser.Render("Conversations") + "\n\n")
	if len(m.summaries) == 0 {
		b.WriteString(styleStatus.Render("  (none yet)") + "\n")
	}
	for i, s := range m.summaries {
		line := fmt.Sprintf("  %s  %d msgs  %s",
			s.UpdatedAt.Format("Jan 02 15:04"), s.MessageCount, s.Preview)
		if i == m.historyIdx {
			line = styleSelected.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + styleStatus.Render("enter: open  x: delete  esc: back"))
	return b.String()
}

func (m Model) statusView() string {
	state := string(m.svc.ConnState())
	status := "● " + state
	if m.svc.Streaming() {
		status = m.spinner.View() + " streaming  |  " + status
	}
	if m.notice != "" {
		status += "  |  " + m.notice
	}
	status += "  |  enter: send  esc: stop  ctrl+h: history  ctrl+n: new  ctrl+e: edit"
	return styleStatus.Render(status)
}

func (m *Model) layout() {
	inputH := 3
	statusH := 1
	contentH := m.height - inputH - statusH - 1
	if contentH < 3 {
		contentH = 3
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, contentH)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = contentH
	}
	m.input.SetWidth(m.width)
}

// refreshTranscript re-renders the transcript into the viewport and keeps it
// pinned to the bottom.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, msg := range m.svc.Messages() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) renderMessage(msg domain.Message) string {
	switch msg.Type {
	case domain.MessageUser:
		line := styleUser.Render("you: ") + msg.Content
		if n := len(msg.Attachments); n == 1 {
			line += styleStatus.Render(" [1 attachment]")
		} else if n > 1 {
			line += styleStatus.Render(fmt.Sprintf(" [%d attachments]", n))
		}
		return line
	case domain.MessageAssistant:
		content := msg.Content
		if msg.IsStreaming {
			content += " ▌"
		}
		return styleAssistant.Render("assistant: ") + content
	case domain.MessageThinking:
		if msg.IsCollapsed {
			return styleThinking.Render("▸ thinking (" + firstLine(msg.Content) + ")")
		}
		label := "thinking: "
		if msg.IsStreaming {
			label = "thinking… "
		}
		return styleThinking.Render(label + msg.Content)
	case domain.MessageToolSession:
		return m.renderToolSession(msg)
	case domain.MessageSystem:
		if msg.Subtype == domain.SubtypeError {
			return styleError.Render("! " + msg.Content)
		}
		return styleSystem.Render("· " + msg.Content)
	default:
		return msg.Content
	}
}

func (m Model) renderToolSession(msg domain.Message) string {
	var b strings.Builder
	b.WriteString(styleTool.Render(fmt.Sprintf("tools [%s]", msg.Status)))
	for _, tool := range msg.Tools {
		b.WriteString("\n  " + toolIcon(tool.Status) + " " + tool.Name)
		if tool.Result != "" {
			b.WriteString(styleStatus.Render(" → " + firstLine(tool.Result)))
		}
	}
	return b.String()
}

func toolIcon(status domain.ToolStatus) string {
	switch status {
	case domain.ToolCompleted:
		return "✓"
	case domain.ToolBlocked, domain.ToolError:
		return "✗"
	case domain.ToolPendingApproval:
		return "?"
	default:
		return "…"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 60
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
