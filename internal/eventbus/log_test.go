package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/store"
	"github.com/orbitflow/agentcore/internal/store/storetest"
)

// insertTestTask inserts the minimal row task_events' foreign key requires,
// without importing internal/task (which itself imports eventbus).
func insertTestTask(t *testing.T, ctx context.Context, pool *store.Pool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Raw().Exec(ctx, `
INSERT INTO tasks (id, workspace_id, created_by, created_at, updated_at, agent_id, description,
  parameters, status, result, error, started_at, completed_at, execution_id, metadata)
VALUES ($1,'ws-1','user-1',now(),now(),'agent-1','test task','{}','submitted','{}',NULL,NULL,NULL,NULL,'{}')`,
		id)
	require.NoError(t, err)
	return id
}

func TestLogAppendAndListSince(t *testing.T) {
	pool := storetest.NewPool(t)
	log := NewLog(pool)
	ctx := context.Background()
	taskID := insertTestTask(t, ctx, pool)

	t.Run("appends_and_replays_events_in_timestamp_order", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		events := []DomainEvent{
			{EventID: uuid.NewString(), TaskID: taskID, EventType: "task.created", Timestamp: base},
			{EventID: uuid.NewString(), TaskID: taskID, EventType: "task.running", Timestamp: base.Add(time.Second)},
			{EventID: uuid.NewString(), TaskID: taskID, EventType: "task.completed", Timestamp: base.Add(2 * time.Second),
				Data: map[string]any{"result": "ok"}},
		}
		for _, ev := range events {
			require.NoError(t, log.Append(ctx, ev))
		}

		got, err := log.ListSince(ctx, taskID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "task.created", got[0].EventType)
		assert.Equal(t, "task.completed", got[2].EventType)
		assert.Equal(t, "ok", got[2].Data["result"])
	})

	t.Run("duplicate_event_id_is_silently_ignored", func(t *testing.T) {
		ev := DomainEvent{EventID: uuid.NewString(), TaskID: taskID, EventType: "task.paused", Timestamp: time.Now().UTC()}
		require.NoError(t, log.Append(ctx, ev))
		require.NoError(t, log.Append(ctx, ev))

		got, err := log.ListSince(ctx, taskID)
		require.NoError(t, err)
		count := 0
		for _, e := range got {
			if e.EventID == ev.EventID {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("list_since_is_empty_for_an_unknown_task", func(t *testing.T) {
		got, err := log.ListSince(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
