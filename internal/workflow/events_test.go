package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEmitterEmitAndDrain(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEmitter("task-1", fixedClock(now))

	e.Emit(EventIterationStarted, map[string]any{"iteration": 1})
	e.Emit(EventLLMCallCompleted, map[string]any{"tokens": 42})

	drained := e.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, EventIterationStarted, drained[0].EventType)
	assert.Equal(t, now, drained[0].Timestamp)
	assert.Equal(t, EventLLMCallCompleted, drained[1].EventType)

	t.Run("clears_the_buffer", func(t *testing.T) {
		assert.Empty(t, e.Drain())
	})
}

func TestEmitterLatest(t *testing.T) {
	e := NewEmitter("task-1", fixedClock(time.Now()))
	for i := 0; i < 5; i++ {
		e.Emit(EventIterationCompleted, map[string]any{"n": i})
	}

	t.Run("caps_at_the_requested_limit", func(t *testing.T) {
		latest := e.Latest(2)
		require.Len(t, latest, 2)
		assert.Equal(t, 3, latest[0].Data["n"])
		assert.Equal(t, 4, latest[1].Data["n"])
	})

	t.Run("returns_everything_when_limit_exceeds_count", func(t *testing.T) {
		assert.Len(t, e.Latest(100), 5)
	})

	t.Run("does_not_clear_the_buffer", func(t *testing.T) {
		e.Latest(1)
		assert.Len(t, e.All(), 5)
	})
}

func TestEmitterAllReturnsACopy(t *testing.T) {
	e := NewEmitter("task-1", fixedClock(time.Now()))
	e.Emit(EventWorkflowStarted, nil)

	all := e.All()
	all[0].EventType = "mutated"

	assert.Equal(t, EventWorkflowStarted, e.All()[0].EventType)
}
