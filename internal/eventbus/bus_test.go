package eventbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/orbitflow/agentcore/internal/store/storetest"
	"github.com/orbitflow/agentcore/internal/telemetry"
)

// newTestBroker spins up a disposable redis container, mirroring the
// teacher's testcontainers-go harness for its own external dependency tests.
func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	ctx := context.Background()

	var (
		container testcontainers.Container
		setupErr  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				setupErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		container, setupErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if setupErr != nil {
		t.Skipf("docker not available, skipping redis-backed test: %v", setupErr)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	broker, err := NewBroker(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	return broker
}

func TestBusPublishAndSubscribe(t *testing.T) {
	pool := storetest.NewPool(t)
	broker := newTestBroker(t)
	bus := NewBus(NewLog(pool), broker, telemetry.NewNoopLogger())
	ctx := context.Background()
	taskID := insertTestTask(t, ctx, pool)

	t.Run("a_late_subscriber_still_replays_published_history", func(t *testing.T) {
		require.NoError(t, bus.Publish(ctx, DomainEvent{
			EventID: uuid.NewString(), TaskID: taskID, EventType: "workflow.task_started", Timestamp: time.Now().UTC(),
		}))
		require.NoError(t, bus.Publish(ctx, DomainEvent{
			EventID: uuid.NewString(), TaskID: taskID, EventType: "workflow.task_completed", Timestamp: time.Now().UTC(),
		}))

		subCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ch := bus.Subscribe(subCtx, taskID)

		var types []string
		for ev := range ch {
			types = append(types, ev.EventType)
		}
		assert.Contains(t, types, "workflow.task_started")
		assert.Contains(t, types, "workflow.task_completed")
	})

	t.Run("subscription_terminates_after_a_terminal_event", func(t *testing.T) {
		otherTask := insertTestTask(t, ctx, pool)
		require.NoError(t, bus.Publish(ctx, DomainEvent{
			EventID: uuid.NewString(), TaskID: otherTask, EventType: "workflow.task_completed", Timestamp: time.Now().UTC(),
		}))

		subCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ch := bus.Subscribe(subCtx, otherTask)

		select {
		case ev, ok := <-ch:
			require.True(t, ok)
			assert.Equal(t, "workflow.task_completed", ev.EventType)
		case <-time.After(3 * time.Second):
			t.Fatal("expected the historical event to be replayed")
		}

		_, stillOpen := <-ch
		assert.False(t, stillOpen, "channel must close once a terminal event is emitted")
	})
}
