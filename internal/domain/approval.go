package domain

// ApprovalRequest is a human-in-the-loop gate for one tool invocation. ToolID
// is not trusted from the wire: the backend emits tool_start and
// approval_request in execution order for one in-flight tool at a time, so the
// client stamps each request with the oldest unmatched pending tool id. An
// empty ToolID means the pending pool was empty when the request arrived, a
// protocol inconsistency the client renders but does not crash on.
type ApprovalRequest struct {
	ApprovalID string         `json:"approval_id"`
	ToolID     string         `json:"tool_id"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
}
