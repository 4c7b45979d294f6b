package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/store/storetest"
	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/trigger/schedule"
)

type fakeTaskCreator struct {
	calls int
	err   error
	lastIn TaskCreateInput
}

func (f *fakeTaskCreator) CreateAndStart(_ context.Context, in TaskCreateInput) (TaskRef, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return TaskRef{}, f.err
	}
	return TaskRef{ID: "task-1"}, nil
}

type fakeAgentValidator struct {
	known map[string]bool
}

func (f *fakeAgentValidator) AgentExists(_ context.Context, agentID string) (bool, error) {
	return f.known[agentID], nil
}

func newService(t *testing.T) (*Service, *schedule.InMemoryManager, *fakeTaskCreator, context.Context) {
	t.Helper()
	pool := storetest.NewPool(t)
	schedules := schedule.NewInMemoryManager()
	tasks := &fakeTaskCreator{}
	agents := &fakeAgentValidator{known: map[string]bool{"support-agent": true}}
	svc := NewService(NewStore(pool), schedules, tasks, agents, nil, NewSimpleEvaluator(telemetry.NewNoopLogger()), telemetry.NewNoopLogger())
	ctx := storetest.WithScope(context.Background(), "ws-1", "user-1")
	return svc, schedules, tasks, ctx
}

func TestServiceCreate(t *testing.T) {
	t.Run("persists_a_cron_trigger_and_registers_a_schedule", func(t *testing.T) {
		svc, schedules, _, ctx := newService(t)
		created, err := svc.Create(ctx, cronCreate())
		require.NoError(t, err)
		assert.True(t, created.IsActive)

		_, err = schedules.Describe(ctx, created.ID)
		assert.NoError(t, err)
	})

	t.Run("rejects_an_unknown_agent", func(t *testing.T) {
		svc, _, _, ctx := newService(t)
		in := cronCreate()
		in.AgentID = "ghost"
		_, err := svc.Create(ctx, in)
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("requires_an_ambient_scope", func(t *testing.T) {
		svc, _, _, _ := newService(t)
		_, err := svc.Create(context.Background(), cronCreate())
		assert.True(t, apperr.Is(err, apperr.MissingContext))
	})

	t.Run("defaults_failure_threshold_when_unset", func(t *testing.T) {
		svc, _, _, ctx := newService(t)
		in := cronCreate()
		in.FailureThreshold = 0
		created, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 5, created.FailureThreshold)
	})
}

func TestServiceUpdateAndLifecycle(t *testing.T) {
	t.Run("update_pushes_a_changed_cron_expression_to_the_schedule", func(t *testing.T) {
		svc, schedules, _, ctx := newService(t)
		created, err := svc.Create(ctx, cronCreate())
		require.NoError(t, err)

		newExpr := "0 12 * * *"
		_, err = svc.Update(ctx, created.ID, Update{CronExpression: &newExpr})
		require.NoError(t, err)

		info, err := schedules.Describe(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, info.Paused)
	})

	t.Run("disable_then_enable_toggles_the_schedule_pause_state", func(t *testing.T) {
		svc, schedules, _, ctx := newService(t)
		created, err := svc.Create(ctx, cronCreate())
		require.NoError(t, err)

		_, err = svc.Disable(ctx, created.ID)
		require.NoError(t, err)
		info, err := schedules.Describe(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, info.Paused)

		_, err = svc.Enable(ctx, created.ID)
		require.NoError(t, err)
		info, err = schedules.Describe(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, info.Paused)
	})

	t.Run("delete_removes_both_the_schedule_and_the_row", func(t *testing.T) {
		svc, schedules, _, ctx := newService(t)
		created, err := svc.Create(ctx, cronCreate())
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ID))
		_, err = schedules.Describe(ctx, created.ID)
		assert.True(t, apperr.Is(err, apperr.NotFound))
		_, err = svc.Get(ctx, created.ID)
		assert.True(t, apperr.Is(err, apperr.NotFound))
	})
}

func TestServiceExecuteTrigger(t *testing.T) {
	t.Run("creates_a_task_and_records_a_successful_execution", func(t *testing.T) {
		svc, _, tasks, ctx := newService(t)
		created, err := svc.Create(ctx, cronCreate())
		require.NoError(t, err)

		exec, err := svc.ExecuteTrigger(ctx, created.ID, map[string]any{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, ExecutionSuccess, exec.Status)
		assert.Equal(t, 1, tasks.calls)
		assert.Equal(t, "v", tasks.lastIn.Parameters["trigger_data"].(map[string]any)["k"])

		fetched, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fetched.ConsecutiveFailures)
	})

	t.Run("skips_execution_when_the_trigger_is_inactive", func(t *testing.T) {
		svc, _, tasks, ctx := newService(t)
		created, err := svc.Create(ctx, cronCreate())
		require.NoError(t, err)
		_, err = svc.Disable(ctx, created.ID)
		require.NoError(t, err)

		exec, err := svc.ExecuteTrigger(ctx, created.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, ExecutionFailed, exec.Status)
		assert.Equal(t, 0, tasks.calls)
	})

	t.Run("skips_execution_when_conditions_are_not_met", func(t *testing.T) {
		svc, _, tasks, ctx := newService(t)
		in := cronCreate()
		in.Conditions = map[string]any{"field_matches": map[string]any{"status": "open"}}
		created, err := svc.Create(ctx, in)
		require.NoError(t, err)

		exec, err := svc.ExecuteTrigger(ctx, created.ID, map[string]any{"status": "closed"})
		require.NoError(t, err)
		assert.Equal(t, ExecutionFailed, exec.Status)
		assert.Equal(t, 0, tasks.calls)
	})

	t.Run("auto_disables_after_the_failure_threshold_is_reached", func(t *testing.T) {
		svc, schedules, tasks, ctx := newService(t)
		in := cronCreate()
		in.FailureThreshold = 2
		created, err := svc.Create(ctx, in)
		require.NoError(t, err)
		tasks.err = apperr.New(apperr.DependencyUnavailable, "task orchestrator down")

		_, err = svc.ExecuteTrigger(ctx, created.ID, nil)
		require.NoError(t, err)
		fetched, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, fetched.IsActive, "must stay active before the threshold is reached")

		_, err = svc.ExecuteTrigger(ctx, created.ID, nil)
		require.NoError(t, err)
		fetched, err = svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, fetched.IsActive, "must auto-disable once consecutive failures hit the threshold")

		info, err := schedules.Describe(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, info.Paused)
	})
}

func TestServiceHealth(t *testing.T) {
	svc, _, _, ctx := newService(t)
	_, err := svc.Create(ctx, cronCreate())
	require.NoError(t, err)

	health, err := svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health["status"])
	assert.GreaterOrEqual(t, health["active_triggers"].(int), 1)
}
