package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/store/storetest"
)

func cronCreate() Create {
	return Create{
		Kind:           KindCron,
		Name:           "nightly-report",
		AgentID:        "support-agent",
		CronExpression: "0 0 * * *",
		Timezone:       "UTC",
	}
}

func webhookCreate() Create {
	return Create{
		Kind:           KindWebhook,
		Name:           "github-hook",
		AgentID:        "support-agent",
		WebhookID:      "wh-" + uuid.NewString(),
		WebhookType:    WebhookGitHub,
		AllowedMethods: []string{"POST"},
	}
}

func TestStoreCRUD(t *testing.T) {
	pool := storetest.NewPool(t)
	s := NewStore(pool)
	ctx := storetest.WithScope(context.Background(), "ws-1", "user-1")

	t.Run("create_and_get_a_cron_trigger", func(t *testing.T) {
		created, err := s.Create(ctx, cronCreate())
		require.NoError(t, err)
		assert.Equal(t, KindCron, created.Kind)
		require.NotNil(t, created.CronExpression)
		assert.Equal(t, "0 0 * * *", *created.CronExpression)
		assert.True(t, created.IsActive)

		fetched, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, fetched.ID)
	})

	t.Run("create_and_look_up_a_webhook_trigger_by_webhook_id", func(t *testing.T) {
		in := webhookCreate()
		created, err := s.Create(ctx, in)
		require.NoError(t, err)

		found, err := s.GetByWebhookID(ctx, in.WebhookID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("get_is_scoped_to_the_workspace", func(t *testing.T) {
		created, err := s.Create(ctx, cronCreate())
		require.NoError(t, err)

		otherCtx := storetest.WithScope(context.Background(), "ws-2", "user-1")
		_, err = s.Get(otherCtx, created.ID)
		assert.True(t, apperr.Is(err, apperr.NotFound))
	})

	t.Run("webhook_lookup_is_not_workspace_scoped", func(t *testing.T) {
		in := webhookCreate()
		_, err := s.Create(ctx, in)
		require.NoError(t, err)

		otherCtx := storetest.WithScope(context.Background(), "ws-2", "user-2")
		found, err := s.GetByWebhookID(otherCtx, in.WebhookID)
		require.NoError(t, err, "webhook routing must resolve across tenants")
		assert.Equal(t, in.WebhookID, *found.WebhookID)
	})

	t.Run("update_applies_only_provided_fields", func(t *testing.T) {
		created, err := s.Create(ctx, cronCreate())
		require.NoError(t, err)

		newName := "renamed"
		updated, err := s.Update(ctx, created.ID, Update{Name: &newName})
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Name)
		assert.Equal(t, created.Description, updated.Description)
	})

	t.Run("delete_removes_the_trigger", func(t *testing.T) {
		created, err := s.Create(ctx, cronCreate())
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))
		_, err = s.Get(ctx, created.ID)
		assert.True(t, apperr.Is(err, apperr.NotFound))
	})

	t.Run("list_filters_by_kind_and_active_only", func(t *testing.T) {
		_, err := s.Create(ctx, cronCreate())
		require.NoError(t, err)
		inactive, err := s.Create(ctx, cronCreate())
		require.NoError(t, err)
		isActive := false
		_, err = s.Update(ctx, inactive.ID, Update{IsActive: &isActive})
		require.NoError(t, err)

		active, err := s.List(ctx, ListFilter{TriggerType: KindCron, ActiveOnly: true})
		require.NoError(t, err)
		for _, tr := range active {
			assert.True(t, tr.IsActive)
		}
	})
}

func TestStoreExecutionTracking(t *testing.T) {
	pool := storetest.NewPool(t)
	s := NewStore(pool)
	ctx := storetest.WithScope(context.Background(), "ws-1", "user-1")

	trig, err := s.Create(ctx, cronCreate())
	require.NoError(t, err)

	t.Run("update_execution_tracking_persists_last_run_and_failure_count", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, s.UpdateExecutionTracking(ctx, trig.ID, now, 2))

		fetched, err := s.Get(ctx, trig.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, fetched.ConsecutiveFailures)
		require.NotNil(t, fetched.LastExecutionAt)
		assert.WithinDuration(t, now, *fetched.LastExecutionAt, time.Second)
	})

	t.Run("record_execution_and_list_executions", func(t *testing.T) {
		_, err := s.RecordExecution(ctx, TriggerExecution{
			TriggerID: trig.ID, Status: ExecutionSuccess, ExecutionTimeMs: 120,
		})
		require.NoError(t, err)
		_, err = s.RecordExecution(ctx, TriggerExecution{
			TriggerID: trig.ID, Status: ExecutionFailed, ExecutionTimeMs: 80,
		})
		require.NoError(t, err)

		page, err := s.ListExecutions(ctx, trig.ID, ExecutionFilter{PageSize: 10})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, page.Total, 2)
	})

	t.Run("metrics_aggregates_execution_outcomes", func(t *testing.T) {
		m, err := s.Metrics(ctx, trig.ID, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.TotalExecutions, 2)
		assert.GreaterOrEqual(t, m.SuccessCount, 1)
		assert.GreaterOrEqual(t, m.FailedCount, 1)
	})
}
