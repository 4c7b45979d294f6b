package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/eventbus"
	"github.com/orbitflow/agentcore/internal/store/storetest"
	"github.com/orbitflow/agentcore/internal/workflow"
	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

type fakeAgentValidator struct {
	known map[string]bool
	err   error
}

func (f *fakeAgentValidator) AgentExists(_ context.Context, agentID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[agentID], nil
}

type fakeHandle struct {
	signals  []string
	cancels  int
	status   workflow.State
	queryErr error
}

func (h *fakeHandle) Wait(_ context.Context, _ any) error { return nil }
func (h *fakeHandle) Signal(_ context.Context, name string, _ any) error {
	h.signals = append(h.signals, name)
	return nil
}
func (h *fakeHandle) Cancel(_ context.Context) error { h.cancels++; return nil }
func (h *fakeHandle) Query(_ context.Context, _ string, _ []any, result any) error {
	if h.queryErr != nil {
		return h.queryErr
	}
	if out, ok := result.(*workflow.CurrentStateView); ok {
		out.Status = h.status
	}
	return nil
}

type fakeEngine struct {
	startErr error
	handles  map[string]*fakeHandle
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{handles: map[string]*fakeHandle{}}
}

func (e *fakeEngine) RegisterWorkflow(_ context.Context, _ engine.WorkflowDefinition) error { return nil }
func (e *fakeEngine) RegisterActivity(_ context.Context, _ engine.ActivityDefinition) error  { return nil }
func (e *fakeEngine) StartWorkflow(_ context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	h := &fakeHandle{status: workflow.State("running")}
	e.handles[req.ID] = h
	return h, nil
}
func (e *fakeEngine) GetWorkflow(_ context.Context, workflowID string) (engine.WorkflowHandle, error) {
	h, ok := e.handles[workflowID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no such workflow")
	}
	return h, nil
}

func newOrchestrator(t *testing.T) (*Orchestrator, *fakeEngine, context.Context) {
	t.Helper()
	pool := storetest.NewPool(t)
	eng := newFakeEngine()
	bus := eventbus.NewBus(eventbus.NewLog(pool), nil, nil)
	agents := &fakeAgentValidator{known: map[string]bool{"support-agent": true}}
	orch := NewOrchestrator(NewStore(pool), agents, eng, bus)
	ctx := storetest.WithScope(context.Background(), "ws-1", "user-1")
	return orch, eng, ctx
}

func TestOrchestratorCreateAndStart(t *testing.T) {
	t.Run("starts_a_workflow_for_a_known_agent", func(t *testing.T) {
		orch, eng, ctx := newOrchestrator(t)
		tsk, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "support-agent", Description: "do a thing"})
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, tsk.Status)
		require.NotNil(t, tsk.ExecutionID)
		assert.Contains(t, eng.handles, *tsk.ExecutionID)
	})

	t.Run("rejects_an_unknown_agent", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		_, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "ghost", Description: "x"})
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("marks_the_task_failed_when_the_engine_cannot_start_it", func(t *testing.T) {
		orch, eng, ctx := newOrchestrator(t)
		eng.startErr = apperr.New(apperr.DependencyUnavailable, "engine down")
		tsk, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "support-agent", Description: "x"})
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, tsk.Status)
		require.NotNil(t, tsk.Error)
	})
}

func TestOrchestratorGet(t *testing.T) {
	t.Run("overlays_live_engine_status_for_a_non_terminal_task", func(t *testing.T) {
		orch, eng, ctx := newOrchestrator(t)
		tsk, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "support-agent", Description: "x"})
		require.NoError(t, err)
		eng.handles[*tsk.ExecutionID].status = workflow.State("paused")

		got, err := orch.Get(ctx, tsk.ID)
		require.NoError(t, err)
		assert.Equal(t, Status("paused"), got.Status)
	})
}

func TestOrchestratorCancelPauseResume(t *testing.T) {
	t.Run("cancel_signals_the_engine_and_marks_cancelled", func(t *testing.T) {
		orch, eng, ctx := newOrchestrator(t)
		tsk, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "support-agent", Description: "x"})
		require.NoError(t, err)

		require.NoError(t, orch.Cancel(ctx, tsk.ID))
		assert.Equal(t, 1, eng.handles[*tsk.ExecutionID].cancels)

		got, err := orch.store.Get(ctx, tsk.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	t.Run("cancel_rejects_an_already_terminal_task", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		tsk, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "support-agent", Description: "x"})
		require.NoError(t, err)
		require.NoError(t, orch.Cancel(ctx, tsk.ID))

		err = orch.Cancel(ctx, tsk.ID)
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("pause_and_resume_deliver_signals", func(t *testing.T) {
		orch, eng, ctx := newOrchestrator(t)
		tsk, err := orch.CreateAndStart(ctx, CreateInput{AgentID: "support-agent", Description: "x"})
		require.NoError(t, err)

		require.NoError(t, orch.Pause(ctx, tsk.ID, "waiting on approval"))
		require.NoError(t, orch.Resume(ctx, tsk.ID, "approved"))
		assert.Equal(t, []string{workflow.SignalPause, workflow.SignalResume}, eng.handles[*tsk.ExecutionID].signals)
	})

	t.Run("pause_rejects_a_task_that_never_started", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		created, err := orch.store.Create(ctx, "support-agent", "x", nil, nil)
		require.NoError(t, err)

		err = orch.Pause(ctx, created.ID, "r")
		assert.True(t, apperr.Is(err, apperr.Validation))
	})
}
