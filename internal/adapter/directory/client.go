// Package directory talks to the conversation directory REST API: the HTTP
// side-channel next to the WebSocket stream that lists, loads, creates and
// deletes stored conversations.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/config"
	"mcpchat/internal/infra/tracer"
)

type httpResult struct {
	status int
	body   []byte
}

// Client is the directory HTTP client. Transport-level failures feed a
// circuit breaker so a dead backend fails fast instead of stacking timeouts;
// HTTP-level errors (404 and friends) do not trip it.
type Client struct {
	baseURL string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[httpResult]
	logger  *slog.Logger
}

// NewClient creates a directory client from config.
func NewClient(cfg config.DirectoryConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[httpResult](gobreaker.Settings{
		Name:        "directory",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("directory breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Create makes a new empty conversation and returns its id.
func (c *Client) Create(ctx context.Context) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "directory.Create")
	defer span.End()

	body, err := c.do(ctx, http.MethodPost, "/api/conversations")
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("directory.Create", err)
	}

	var out struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		tracer.RecordError(span, err)
		return "", domain.NewDomainError("directory.Create", domain.ErrDirectoryUnavailable, err.Error())
	}
	if out.ConversationID == "" {
		return "", domain.NewDomainError("directory.Create", domain.ErrDirectoryUnavailable, "empty conversation_id")
	}
	tracer.SetOK(span)
	return out.ConversationID, nil
}

// List returns up to limit conversation summaries, most recent first.
func (c *Client) List(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	ctx, span := tracer.StartSpan(ctx, "directory.List")
	defer span.End()

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/conversations?limit=%d", limit))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("directory.List", err)
	}

	var out struct {
		Conversations []struct {
			ConversationID string `json:"conversation_id"`
			CreatedAt      string `json:"created_at"`
			UpdatedAt      string `json:"updated_at"`
			MessageCount   int    `json:"message_count"`
			Preview        string `json:"preview"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("directory.List", domain.ErrDirectoryUnavailable, err.Error())
	}

	summaries := make([]domain.ConversationSummary, 0, len(out.Conversations))
	for _, conv := range out.Conversations {
		created, _ := parseTime(conv.CreatedAt)
		updated, _ := parseTime(conv.UpdatedAt)
		summaries = append(summaries, domain.ConversationSummary{
			ConversationID: conv.ConversationID,
			CreatedAt:      created,
			UpdatedAt:      updated,
			MessageCount:   conv.MessageCount,
			Preview:        conv.Preview,
		})
	}
	tracer.SetOK(span)
	return summaries, nil
}

// Fetch loads one stored conversation. Live-persisted conversations arrive as
// UI-shaped messages; agent-persisted ones arrive as turns of parts and go
// through Replay. Either way the caller gets transcript-ready messages.
func (c *Client) Fetch(ctx context.Context, id string) (*domain.Conversation, error) {
	ctx, span := tracer.StartSpan(ctx, "directory.Fetch")
	span.SetAttributes(tracer.StringAttr("conversation_id", id))
	defer span.End()

	body, err := c.do(ctx, http.MethodGet, "/api/conversations/"+id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("directory.Fetch", err)
	}

	var out struct {
		Conversation struct {
			ConversationID string            `json:"conversation_id"`
			CreatedAt      string            `json:"created_at"`
			UpdatedAt      string            `json:"updated_at"`
			Messages       []json.RawMessage `json:"messages"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("directory.Fetch", domain.ErrDirectoryUnavailable, err.Error())
	}

	messages, err := decodeStoredMessages(out.Conversation.Messages)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("directory.Fetch", domain.ErrDirectoryUnavailable, err.Error())
	}

	created, _ := parseTime(out.Conversation.CreatedAt)
	updated, _ := parseTime(out.Conversation.UpdatedAt)
	tracer.SetOK(span)
	return &domain.Conversation{
		ConversationID: out.Conversation.ConversationID,
		CreatedAt:      created,
		UpdatedAt:      updated,
		Messages:       messages,
	}, nil
}

// Delete removes a stored conversation.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.StartSpan(ctx, "directory.Delete")
	span.SetAttributes(tracer.StringAttr("conversation_id", id))
	defer span.End()

	if _, err := c.do(ctx, http.MethodDelete, "/api/conversations/"+id); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("directory.Delete", err)
	}
	tracer.SetOK(span)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	res, err := c.breaker.Execute(func() (httpResult, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return httpResult{}, err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return httpResult{}, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return httpResult{}, err
		}
		return httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewDomainError("directory", domain.ErrDirectoryUnavailable, "circuit open")
		}
		return nil, domain.NewDomainError("directory", domain.ErrDirectoryUnavailable, err.Error())
	}

	switch {
	case res.status == http.StatusNotFound:
		return nil, domain.ErrConversationMissing
	case res.status >= 400:
		return nil, domain.NewDomainError("directory", domain.ErrDirectoryUnavailable,
			fmt.Sprintf("%s %s: status %d", method, path, res.status))
	}
	return res.body, nil
}

// decodeStoredMessages handles both stored shapes: entries carrying a "parts"
// array are agent-format turns for Replay, everything else is already
// UI-shaped.
func decodeStoredMessages(raw []json.RawMessage) ([]domain.Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var probe struct {
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(raw[0], &probe); err == nil && probe.Parts != nil {
		turns := make([][]Part, 0, len(raw))
		for _, entry := range raw {
			var turn struct {
				Parts []Part `json:"parts"`
			}
			if err := json.Unmarshal(entry, &turn); err != nil {
				return nil, err
			}
			turns = append(turns, turn.Parts)
		}
		return Replay(turns), nil
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, entry := range raw {
		var ui uiMessage
		if err := json.Unmarshal(entry, &ui); err != nil {
			return nil, err
		}
		messages = append(messages, ui.toDomain())
	}
	return messages, nil
}

type uiTool struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Args      map[string]any `json:"args"`
	Result    string         `json:"result"`
}

type uiAttachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
	URL       string `json:"url"`
}

type uiMessage struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Timestamp   string         `json:"timestamp"`
	Content     string         `json:"content"`
	Subtype     string         `json:"subtype"`
	Attachments []uiAttachment `json:"attachments"`
	Tools       []uiTool       `json:"tools"`
	Status      string         `json:"status"`
	IsStreaming bool           `json:"is_streaming"`
	IsCollapsed bool           `json:"is_collapsed"`
}

func (m uiMessage) toDomain() domain.Message {
	ts, _ := parseTime(m.Timestamp)
	msg := domain.Message{
		ID:          m.ID,
		Type:        domain.MessageType(m.Type),
		Timestamp:   ts,
		Content:     m.Content,
		Subtype:     m.Subtype,
		Status:      domain.SessionStatus(m.Status),
		IsStreaming: m.IsStreaming,
		IsCollapsed: m.IsCollapsed,
	}
	if msg.ID == "" {
		msg.ID = domain.NewMessageID()
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ID:        att.ID,
			Name:      att.Name,
			MediaType: att.MediaType,
			Size:      att.Size,
			URL:       att.URL,
		})
	}
	for _, tool := range m.Tools {
		toolTS, _ := parseTime(tool.Timestamp)
		msg.Tools = append(msg.Tools, domain.ToolInstance{
			ID:        tool.ID,
			Name:      tool.Name,
			Status:    domain.ToolStatus(tool.Status),
			Timestamp: toolTS,
			Args:      tool.Args,
			Result:    tool.Result,
		})
	}
	return msg
}

// parseTime accepts RFC 3339 and the zone-less ISO form Python's isoformat
// emits for naive datetimes.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
