package transport

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mcpchat/internal/domain"
)

// Resolver yields the backend's WebSocket URL. Resolution happens before
// every dial so a restarted backend on a new port is picked up on reconnect.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always returns a fixed URL.
type StaticResolver string

func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	if r == "" {
		return "", domain.NewDomainError("transport.Resolve", domain.ErrEndpointUnresolved, "empty url")
	}
	return string(r), nil
}

// PortFileResolver polls a file the backend writes its listening port into.
// The backend may not have started yet when the client launches, so the file
// is retried until Timeout.
type PortFileResolver struct {
	Path     string
	Host     string
	Interval time.Duration
	Timeout  time.Duration
}

func (r PortFileResolver) Resolve(ctx context.Context) (string, error) {
	interval := r.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host := r.Host
	if host == "" {
		host = "127.0.0.1"
	}

	deadline := time.Now().Add(timeout)
	for {
		if port, ok := r.readPort(); ok {
			return fmt.Sprintf("ws://%s/ws", netJoin(host, port)), nil
		}
		if time.Now().After(deadline) {
			return "", domain.NewDomainError("transport.Resolve", domain.ErrEndpointUnresolved, r.Path)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (r PortFileResolver) readPort() (int, bool) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

func netJoin(host string, port int) string {
	if strings.Contains(host, ":") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}
