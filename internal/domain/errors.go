package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	ErrNotConnected         = fmt.Errorf("not connected")
	ErrEndpointUnresolved   = fmt.Errorf("server endpoint not resolved")
	ErrConversationMissing  = fmt.Errorf("conversation not found")
	ErrNoActiveApproval     = fmt.Errorf("no approval request pending")
	ErrNoConversation       = fmt.Errorf("no active conversation")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrUnknownEventType     = fmt.Errorf("unknown event type")
	ErrUnknownCommandType   = fmt.Errorf("unknown command type")
	ErrMalformedFrame       = fmt.Errorf("malformed frame")
	ErrDirectoryUnavailable = fmt.Errorf("conversation directory unavailable")
	ErrConfigLoad           = fmt.Errorf("failed to load configuration")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Directory.Fetch")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
