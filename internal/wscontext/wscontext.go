// Package wscontext carries the ambient tenant scope (workspace id, user id)
// through every call path, replacing the thread-local-style globals the
// design notes (spec §9) call out as an anti-pattern. The scope is set once
// at the edge (auth/ingest layer) and flows through context.Context,
// following the same private-key pattern the teacher uses for
// engine.WorkflowContext propagation (runtime/agent/engine/context.go).
package wscontext

import "context"

type scopeKey struct{}

// Scope is the ambient tenant context every store call, workflow activity,
// and webhook invocation is bound to.
type Scope struct {
	WorkspaceID string
	UserID      string
}

// Empty reports whether the scope is missing required fields.
func (s Scope) Empty() bool {
	return s.WorkspaceID == "" || s.UserID == ""
}

// With returns a child context carrying scope.
func With(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// From extracts the Scope from ctx. The second return is false when no scope
// was ever attached (as opposed to an attached-but-empty scope).
func From(ctx context.Context) (Scope, bool) {
	v := ctx.Value(scopeKey{})
	if v == nil {
		return Scope{}, false
	}
	s, ok := v.(Scope)
	return s, ok
}

// MustFrom extracts the Scope from ctx, or returns a zero Scope with Empty()
// true when absent. Callers that require a populated scope should check
// Empty() themselves and surface apperr.MissingContext — this helper never
// panics so it is safe to call from activity code that may run detached from
// the original request context.
func MustFrom(ctx context.Context) Scope {
	s, _ := From(ctx)
	return s
}
