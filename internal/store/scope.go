package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/wscontext"
)

// RequireScope extracts the ambient wscontext.Scope from ctx and fails with
// apperr.MissingContext if it is absent or incomplete. Every repository
// method in this package calls this first — the store never accepts a
// request with missing workspace_id (spec §4.1).
func RequireScope(ctx context.Context) (wscontext.Scope, error) {
	scope, ok := wscontext.From(ctx)
	if !ok || scope.Empty() {
		return wscontext.Scope{}, apperr.New(apperr.MissingContext, "workspace/user scope not present on context")
	}
	return scope, nil
}

// NewID generates a new entity identifier (UUID v4) per spec §3.
func NewID() string {
	return uuid.New().String()
}
