package tools

import "context"

// ApprovalService decides whether a pending tool call may proceed. callers
// must return promptly once ctx is done: the executor derives ctx's deadline
// from the tool's configured approval timeout, and a context.DeadlineExceeded
// return is what converts into ToolApprovalTimeout.
type ApprovalService interface {
	RequestApproval(ctx context.Context, requestID, actionType, prompt string) (approved bool, err error)
}

// AutoApprove always approves, useful for tests and execution modes that
// never gate on a human.
type AutoApprove struct{}

// RequestApproval implements ApprovalService by always approving.
func (AutoApprove) RequestApproval(context.Context, string, string, string) (bool, error) {
	return true, nil
}

// AutoDeny always denies.
type AutoDeny struct{}

// RequestApproval implements ApprovalService by always denying.
func (AutoDeny) RequestApproval(context.Context, string, string, string) (bool, error) {
	return false, nil
}
