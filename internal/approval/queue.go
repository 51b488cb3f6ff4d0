// Package approval holds pending tool-approval requests and the pool of tool
// ids announced before their approval request arrived. The backend emits
// tool_start and approval_request in execution order for one in-flight tool
// at a time, so pairing is by arrival order: each approval request consumes
// the oldest unmatched pending tool id.
package approval

import (
	"sync"

	"mcpchat/internal/domain"
)

// Queue is a FIFO of approval requests plus the pending-tool pool. All
// methods are safe for concurrent use; the queue is mutated only through
// them.
type Queue struct {
	mu       sync.Mutex
	requests []domain.ApprovalRequest
	pending  []string
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// NotePendingTool records a tool id announced by tool_start that has not yet
// been matched to an approval request.
func (q *Queue) NotePendingTool(toolID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, toolID)
}

// ConsumePendingTool pops the oldest unmatched pending tool id. Returns the
// empty string when nothing is pending, which marks a protocol inconsistency
// the caller renders rather than crashes on.
func (q *Queue) ConsumePendingTool() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return ""
	}
	toolID := q.pending[0]
	q.pending = q.pending[1:]
	return toolID
}

// Enqueue appends a request behind any already-queued ones. Exactly one
// request is current at a time; the rest wait their turn.
func (q *Queue) Enqueue(req domain.ApprovalRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, req)
}

// Current returns the head request and true, or a zero request and false when
// the queue is empty.
func (q *Queue) Current() (domain.ApprovalRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.requests) == 0 {
		return domain.ApprovalRequest{}, false
	}
	return q.requests[0], true
}

// DequeueCurrent removes the head request once the user has answered it.
func (q *Queue) DequeueCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.requests) > 0 {
		q.requests = q.requests[1:]
	}
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Clear drops all queued requests and pending tool ids. Called when the
// transcript is reset or the connection is lost: queued approvals belong to a
// stream that no longer exists.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = nil
	q.pending = nil
}
