package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/trigger"
)

func TestTriggerTaskCreatorCreateAndStart(t *testing.T) {
	orch, _, ctx := newOrchestrator(t)
	adapter := NewTriggerTaskCreator(orch)

	ref, err := adapter.CreateAndStart(ctx, trigger.TaskCreateInput{
		AgentID: "support-agent", Description: "triggered run",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)

	created, err := orch.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "support-agent", created.AgentID)
}
