package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpchat/internal/domain"
)

func TestPendingToolFIFO(t *testing.T) {
	q := NewQueue()
	q.NotePendingTool("tool-a")
	q.NotePendingTool("tool-b")

	assert.Equal(t, "tool-a", q.ConsumePendingTool())
	assert.Equal(t, "tool-b", q.ConsumePendingTool())
	assert.Equal(t, "", q.ConsumePendingTool())
}

func TestConsumeEmptyPoolReturnsSentinel(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, "", q.ConsumePendingTool())
}

func TestRequestQueueOrder(t *testing.T) {
	q := NewQueue()

	_, ok := q.Current()
	assert.False(t, ok)

	q.Enqueue(domain.ApprovalRequest{ApprovalID: "a1", ToolID: "t1"})
	q.Enqueue(domain.ApprovalRequest{ApprovalID: "a2", ToolID: "t2"})

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a1", cur.ApprovalID)

	q.DequeueCurrent()
	cur, ok = q.Current()
	require.True(t, ok)
	assert.Equal(t, "a2", cur.ApprovalID)

	q.DequeueCurrent()
	_, ok = q.Current()
	assert.False(t, ok)
}

func TestDequeueEmptyIsNoop(t *testing.T) {
	q := NewQueue()
	q.DequeueCurrent() // must not panic
	assert.Equal(t, 0, q.Len())
}

// tool_start(A), tool_start(B), approval_request, approval_request must pair
// req1→A and req2→B regardless of arrival gaps.
func TestStartApprovalInterleaving(t *testing.T) {
	q := NewQueue()
	q.NotePendingTool("A")
	q.NotePendingTool("B")

	req1 := domain.ApprovalRequest{ApprovalID: "r1", ToolID: q.ConsumePendingTool()}
	q.Enqueue(req1)
	req2 := domain.ApprovalRequest{ApprovalID: "r2", ToolID: q.ConsumePendingTool()}
	q.Enqueue(req2)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "A", cur.ToolID)

	q.DequeueCurrent()
	cur, ok = q.Current()
	require.True(t, ok)
	assert.Equal(t, "B", cur.ToolID)
}

func TestClear(t *testing.T) {
	q := NewQueue()
	q.NotePendingTool("t1")
	q.Enqueue(domain.ApprovalRequest{ApprovalID: "a1"})

	q.Clear()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, "", q.ConsumePendingTool())
}
