// Package engine defines the workflow engine abstraction the Agent
// Execution Workflow (C7, spec §4.7) runs against. It provides a pluggable
// interface so the workflow logic can target Temporal or an in-memory
// engine without modification — the deterministic parts of the state
// machine talk only to this package, never to a backend SDK directly.
package engine

import (
	"context"
	"time"

	"github.com/orbitflow/agentcore/internal/telemetry"
)

type (
	// Engine abstracts workflow/activity registration and execution so
	// adapters (Temporal, in-memory) can be swapped without touching the
	// Agent Execution Workflow.
	Engine interface {
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error
		RegisterActivity(ctx context.Context, def ActivityDefinition) error
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default queue.
	WorkflowDefinition struct {
		Name      string
		TaskQueue string
		Handler   WorkflowFunc
	}

	// WorkflowFunc is the workflow entry point. It must be deterministic:
	// same inputs and activity results must produce the same execution
	// sequence on replay.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to workflow handlers.
	// Implementations must ensure deterministic replay — no direct I/O,
	// randomness, or wall-clock access within workflow code; use Now()
	// and ExecuteActivity for anything that touches the outside world.
	WorkflowContext interface {
		Context() context.Context
		WorkflowID() string
		RunID() string

		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

		SignalChannel(name string) SignalChannel

		Logger() telemetry.Logger
		Metrics() telemetry.Metrics
		Tracer() telemetry.Tracer

		// Now returns replay-safe workflow time.
		Now() time.Time
	}

	// Future represents a pending activity result.
	Future interface {
		Get(ctx context.Context, result any) error
		IsReady() bool
	}

	// ActivityDefinition registers an activity handler with defaults.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles a single activity invocation. Unlike workflow
	// code, activities may perform arbitrary I/O.
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry/timeout behavior for an activity
	// (spec §4.7.3's per-activity timeout table).
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch a workflow execution.
	WorkflowStartRequest struct {
		ID               string
		Workflow         string
		TaskQueue        string
		Input            any
		Memo             map[string]any
		SearchAttributes map[string]any
		RetryPolicy      RetryPolicy
	}

	// ActivityRequest contains the info needed to schedule an activity.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle lets callers interact with a running workflow.
	WorkflowHandle interface {
		Wait(ctx context.Context, result any) error
		Signal(ctx context.Context, name string, payload any) error
		Cancel(ctx context.Context) error
		Query(ctx context.Context, name string, args []any, result any) error
	}

	// RetryPolicy is shared by workflows and activities. Zero-valued
	// fields mean the engine falls back to its defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}

	// SignalChannel exposes engine-agnostic signal delivery.
	SignalChannel interface {
		Receive(ctx context.Context, dest any) error
		ReceiveAsync(dest any) bool
	}
)

// QueryHandler answers a synchronous, side-effect-free workflow query (spec
// §4.7.2). args are the caller-supplied query arguments.
type QueryHandler func(args ...any) (any, error)

// QueryRegistrar is implemented by WorkflowContext backends that support
// registering query handlers (both the in-memory and Temporal engines do).
// It is a separate interface, rather than folded into WorkflowContext,
// because query registration happens once per workflow run rather than on
// every call, and not all hypothetical backends need support it.
type QueryRegistrar interface {
	SetQueryHandler(name string, handler QueryHandler) error
}

// HandleLookup is implemented by Engine backends that can re-attach a
// WorkflowHandle to an already-started execution by workflow id, without
// holding onto the handle returned from StartWorkflow. The Task
// Orchestrator (spec §4.8) needs this to signal/query/cancel a workflow
// across process restarts, since it only persists the workflow id, not a
// live handle.
type HandleLookup interface {
	GetWorkflow(ctx context.Context, workflowID string) (WorkflowHandle, error)
}
