package engine

import "context"

// wfCtxKey stashes a WorkflowContext inside a Go context passed to
// activities, so activity code can recover the originating workflow context
// when it needs workflow-scoped telemetry.
type wfCtxKey struct{}

// WithWorkflowContext returns a child context carrying wf.
func WithWorkflowContext(ctx context.Context, wf WorkflowContext) context.Context {
	return context.WithValue(ctx, wfCtxKey{}, wf)
}

// WorkflowContextFromContext extracts a WorkflowContext from ctx, if present.
func WorkflowContextFromContext(ctx context.Context) WorkflowContext {
	if v := ctx.Value(wfCtxKey{}); v != nil {
		if wf, ok := v.(WorkflowContext); ok {
			return wf
		}
	}
	return nil
}
