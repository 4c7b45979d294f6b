package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/store/storetest"
)

func TestStoreLifecycle(t *testing.T) {
	pool := storetest.NewPool(t)
	s := NewStore(pool)
	ctx := storetest.WithScope(context.Background(), "ws-1", "user-1")

	t.Run("create_persists_a_submitted_task", func(t *testing.T) {
		created, err := s.Create(ctx, "support-agent", "summarize the thread", map[string]any{"k": "v"}, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusSubmitted, created.Status)
		assert.Equal(t, "support-agent", created.AgentID)
		assert.Equal(t, "v", created.Parameters["k"])

		fetched, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, fetched.ID)
	})

	t.Run("get_is_scoped_to_the_workspace", func(t *testing.T) {
		created, err := s.Create(ctx, "support-agent", "x", nil, nil)
		require.NoError(t, err)

		otherCtx := storetest.WithScope(context.Background(), "ws-2", "user-1")
		_, err = s.Get(otherCtx, created.ID)
		assert.True(t, apperr.Is(err, apperr.NotFound))
	})

	t.Run("mark_running_sets_execution_id_once", func(t *testing.T) {
		created, err := s.Create(ctx, "support-agent", "x", nil, nil)
		require.NoError(t, err)

		require.NoError(t, s.MarkRunning(ctx, created.ID, "wf-1"))
		running, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, running.Status)
		require.NotNil(t, running.ExecutionID)
		assert.Equal(t, "wf-1", *running.ExecutionID)

		err = s.MarkRunning(ctx, created.ID, "wf-2")
		assert.True(t, apperr.Is(err, apperr.NotFound), "execution_id must be immutable once set")
	})

	t.Run("mark_failed_sets_terminal_status_and_error", func(t *testing.T) {
		created, err := s.Create(ctx, "support-agent", "x", nil, nil)
		require.NoError(t, err)

		require.NoError(t, s.MarkFailed(ctx, created.ID, "boom"))
		failed, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, failed.Status)
		require.NotNil(t, failed.Error)
		assert.Equal(t, "boom", *failed.Error)
	})

	t.Run("complete_preserves_parameters_and_metadata", func(t *testing.T) {
		created, err := s.Create(ctx, "support-agent", "x", map[string]any{"p": 1.0}, map[string]any{"m": 2.0})
		require.NoError(t, err)

		require.NoError(t, s.Complete(ctx, created.ID, StatusCompleted, map[string]any{"answer": "42"}, nil))
		done, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)
		assert.Equal(t, "42", done.Result["answer"])
		assert.Equal(t, 1.0, done.Parameters["p"])
		assert.Equal(t, 2.0, done.Metadata["m"])
	})

	t.Run("set_status_updates_only_the_status_column", func(t *testing.T) {
		created, err := s.Create(ctx, "support-agent", "x", nil, nil)
		require.NoError(t, err)

		require.NoError(t, s.SetStatus(ctx, created.ID, StatusCancelled))
		cancelled, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
	})

	t.Run("list_filters_by_agent_and_creator", func(t *testing.T) {
		_, err := s.Create(ctx, "agent-a", "x", nil, nil)
		require.NoError(t, err)
		_, err = s.Create(ctx, "agent-b", "y", nil, nil)
		require.NoError(t, err)

		filtered, err := s.List(ctx, ListFilter{AgentID: "agent-a"})
		require.NoError(t, err)
		for _, tsk := range filtered {
			assert.Equal(t, "agent-a", tsk.AgentID)
		}

		scoped, err := s.List(ctx, ListFilter{CreatorScoped: true})
		require.NoError(t, err)
		for _, tsk := range scoped {
			assert.Equal(t, "user-1", tsk.CreatedBy)
		}
	})

	t.Run("operations_without_scope_fail_with_missing_context", func(t *testing.T) {
		_, err := s.Create(context.Background(), "a", "x", nil, nil)
		assert.True(t, apperr.Is(err, apperr.MissingContext))
	})
}
