// Package transport maintains the persistent WebSocket to the chat backend:
// dialing, a fixed-interval reconnect loop, and the read/write pumps that
// turn raw frames into typed protocol events and commands.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"mcpchat/internal/domain"
	"mcpchat/internal/protocol"
)

const (
	defaultReconnectWait = 3 * time.Second
	dialTimeout          = 10 * time.Second
	sendQueueSize        = 64
	eventQueueSize       = 256
)

// Client owns one WebSocket connection at a time. Inbound frames are decoded
// and delivered on Events in arrival order; outbound commands queue behind a
// per-connection buffer. A dropped connection is retried forever at a fixed
// interval until the context is cancelled.
type Client struct {
	resolver      Resolver
	logger        *slog.Logger
	reconnectWait time.Duration

	events chan protocol.Event
	states chan domain.ConnState

	mu       sync.Mutex
	sendCh   chan []byte
	state    domain.ConnState
	endpoint string
}

// NewClient creates a client. reconnectWait <= 0 selects the default.
func NewClient(resolver Resolver, reconnectWait time.Duration, logger *slog.Logger) *Client {
	if reconnectWait <= 0 {
		reconnectWait = defaultReconnectWait
	}
	return &Client{
		resolver:      resolver,
		logger:        logger,
		reconnectWait: reconnectWait,
		events:        make(chan protocol.Event, eventQueueSize),
		states:        make(chan domain.ConnState, 16),
		state:         domain.ConnDisconnected,
	}
}

// Events delivers decoded inbound events. Closed when Run returns.
func (c *Client) Events() <-chan protocol.Event { return c.events }

// States delivers connection-state transitions. Closed when Run returns.
func (c *Client) States() <-chan domain.ConnState { return c.states }

// State returns the current connection state.
func (c *Client) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Endpoint returns the most recently resolved server URL, empty until the
// first resolution succeeds.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Run dials, pumps, and redials until ctx is cancelled. Blocks for the
// client's whole lifetime; both channels close on return.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		c.setState(domain.ConnClosed)
		close(c.events)
		close(c.states)
	}()

	c.setState(domain.ConnConnecting)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("backend dial failed", "error", err)
			if !c.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.setState(domain.ConnConnected)
		c.logger.Info("connected to backend")

		c.serve(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Reconnecting is reported at drop time so consumers can retire
		// streaming state before any recovery traffic arrives.
		c.setState(domain.ConnReconnecting)
		c.logger.Info("connection lost, retrying", "wait", c.reconnectWait)
		if !c.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	url, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.endpoint = url
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// serve pumps one connection until it drops. The write loop drains the
// per-connection send queue; the read loop decodes frames and blocks on the
// events channel, preserving arrival order.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sendCh := make(chan []byte, sendQueueSize)
	c.mu.Lock()
	c.sendCh = sendCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sendCh = nil
		c.mu.Unlock()
	}()

	go c.writeLoop(connCtx, conn, sendCh)

	defer conn.Close(websocket.StatusNormalClosure, "")
	for {
		var raw json.RawMessage
		if err := wsjson.Read(connCtx, conn, &raw); err != nil {
			return
		}
		ev, err := protocol.DecodeEvent(raw)
		if err != nil {
			// Unknown or malformed frames are dropped; the stream stays up.
			if errors.Is(err, domain.ErrUnknownEventType) {
				c.logger.Warn("unknown event type, frame dropped")
			} else {
				c.logger.Warn("malformed frame dropped", "error", err)
			}
			continue
		}
		select {
		case c.events <- ev:
		case <-connCtx.Done():
			return
		}
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, sendCh chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sendCh:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Send queues a command for the current connection. While disconnected the
// command is discarded with an error; callers surface a warning rather than
// retry, matching fire-and-forget command semantics.
func (c *Client) Send(cmd protocol.Command) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return domain.WrapOp("transport.Send", err)
	}

	c.mu.Lock()
	ch := c.sendCh
	state := c.state
	c.mu.Unlock()

	if state != domain.ConnConnected || ch == nil {
		return domain.NewDomainError("transport.Send", domain.ErrNotConnected, string(cmd.CommandType()))
	}
	select {
	case ch <- data:
		return nil
	default:
		return fmt.Errorf("transport: send queue full, dropped %s", cmd.CommandType())
	}
}

func (c *Client) setState(state domain.ConnState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()
	if !changed || state == domain.ConnClosed {
		return
	}
	c.states <- state
}

// wait sleeps one reconnect interval; false means the context ended first.
func (c *Client) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.reconnectWait):
		return true
	}
}
