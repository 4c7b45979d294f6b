package task

import (
	"context"
	"fmt"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/eventbus"
	"github.com/orbitflow/agentcore/internal/wscontext"
	"github.com/orbitflow/agentcore/internal/workflow"
	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

// AgentValidator mirrors trigger.AgentValidator: agent CRUD is out of scope
// for this platform (spec §13 Non-goals), so validating agent_id is an
// external collaborator.
type AgentValidator interface {
	AgentExists(ctx context.Context, agentID string) (bool, error)
}

const (
	taskQueue      = "agent-tasks"
	workflowIDPref = "task-"
)

// Orchestrator implements the Task Orchestrator (C8, spec §4.8): the
// user-facing task API that persists tasks, starts Agent Execution
// Workflows on the engine, and exposes status/cancel/pause/resume plus the
// replay+live event stream.
type Orchestrator struct {
	store  *Store
	agents AgentValidator
	eng    engine.Engine
	bus    *eventbus.Bus
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(store *Store, agents AgentValidator, eng engine.Engine, bus *eventbus.Bus) *Orchestrator {
	return &Orchestrator{store: store, agents: agents, eng: eng, bus: bus}
}

// CreateAndStart implements spec §4.8's CreateAndStart: validates the agent,
// persists the task in submitted/pending, starts
// AgentExecutionWorkflow with id "task-{task_id}" on queue "agent-tasks",
// then updates the task to running with execution_id. On engine start
// failure the task transitions directly to failed.
func (o *Orchestrator) CreateAndStart(ctx context.Context, in CreateInput) (*Task, error) {
	exists, err := o.agents.AgentExists(ctx, in.AgentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "validate agent", err)
	}
	if !exists {
		return nil, apperr.New(apperr.Validation, "agent does not exist")
	}

	t, err := o.store.Create(ctx, in.AgentID, in.Description, in.Parameters, nil)
	if err != nil {
		return nil, err
	}

	scope, _ := wscontext.From(ctx)
	workflowID := workflowIDPref + t.ID
	_, err = o.eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID: workflowID, Workflow: workflow.WorkflowName, TaskQueue: taskQueue,
		Input: workflow.AgentExecutionRequest{
			TaskID: t.ID, AgentID: in.AgentID, UserID: scope.UserID, WorkspaceID: scope.WorkspaceID,
			TaskQuery: in.Description, TaskParameters: in.Parameters,
			TimeoutSeconds: in.TimeoutSeconds, MaxReasoningIterations: in.MaxReasoningIterations,
			EnableAgentCommunication: in.EnableAgentCommunication, RequiresHumanApproval: in.RequiresHumanApproval,
			BudgetUSD: in.BudgetUSD,
		},
	})
	if err != nil {
		_ = o.store.MarkFailed(ctx, t.ID, fmt.Sprintf("failed to start workflow: %v", err))
		return o.store.Get(ctx, t.ID)
	}

	if err := o.store.MarkRunning(ctx, t.ID, workflowID); err != nil {
		return nil, err
	}
	return o.store.Get(ctx, t.ID)
}

// Get reads the task row and, if execution_id is set and the task is not yet
// terminal, overlays the engine's current status (spec §4.8).
func (o *Orchestrator) Get(ctx context.Context, id string) (*Task, error) {
	t, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ExecutionID == nil || t.Status.Terminal() {
		return t, nil
	}
	var view workflow.CurrentStateView
	h, err := o.handleFor(ctx, *t.ExecutionID)
	if err != nil {
		return t, nil
	}
	if err := h.Query(ctx, workflow.QueryCurrentState, nil, &view); err != nil {
		return t, nil
	}
	t.Status = Status(view.Status)
	return t, nil
}

// List returns tasks per spec §4.8's filter surface.
func (o *Orchestrator) List(ctx context.Context, f ListFilter) ([]Task, error) {
	return o.store.List(ctx, f)
}

// Cancel calls the engine's CancelWorkflow and sets status=cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	t, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return apperr.New(apperr.Validation, "task is already terminal")
	}
	if t.ExecutionID != nil {
		h, err := o.handleFor(ctx, *t.ExecutionID)
		if err == nil {
			_ = h.Cancel(ctx)
		}
	}
	return o.store.SetStatus(ctx, id, StatusCancelled)
}

// Pause sends a pause signal; rejects when the task is terminal.
func (o *Orchestrator) Pause(ctx context.Context, id, reason string) error {
	return o.signal(ctx, id, workflow.SignalPause, reason)
}

// Resume sends a resume signal; rejects when the task is terminal.
func (o *Orchestrator) Resume(ctx context.Context, id, reason string) error {
	return o.signal(ctx, id, workflow.SignalResume, reason)
}

func (o *Orchestrator) signal(ctx context.Context, id, signalName, reason string) error {
	t, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return apperr.New(apperr.Validation, "task is already terminal")
	}
	if t.ExecutionID == nil {
		return apperr.New(apperr.Validation, "task has not started")
	}
	h, err := o.handleFor(ctx, *t.ExecutionID)
	if err != nil {
		return err
	}
	return h.Signal(ctx, signalName, reason)
}

// StreamEvents implements spec §4.2's replay+live subscription contract for
// one task_id, delegating to the Event Bus.
func (o *Orchestrator) StreamEvents(ctx context.Context, taskID string) <-chan eventbus.DomainEvent {
	return o.bus.Subscribe(ctx, taskID)
}

// Events returns the persisted event history for a task, for the
// non-streaming GET events endpoint (spec §6.1).
func (o *Orchestrator) Events(ctx context.Context, taskID string) ([]eventbus.DomainEvent, error) {
	return o.bus.ListSince(ctx, taskID)
}

// handleFor re-attaches a WorkflowHandle by workflow id. Temporal supports
// this via GetWorkflow; the in-memory engine only supports handles returned
// from StartWorkflow, so handleFor requires the engine to implement
// engine.HandleLookup (added for exactly this purpose).
func (o *Orchestrator) handleFor(ctx context.Context, workflowID string) (engine.WorkflowHandle, error) {
	lookup, ok := o.eng.(engine.HandleLookup)
	if !ok {
		return nil, apperr.New(apperr.DependencyUnavailable, "engine does not support workflow handle lookup")
	}
	return lookup.GetWorkflow(ctx, workflowID)
}
