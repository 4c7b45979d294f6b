package task

import (
	"context"

	"github.com/orbitflow/agentcore/internal/trigger"
)

// TriggerTaskCreator adapts Orchestrator to trigger.TaskCreator, the narrow
// view of task creation the Trigger Service (C6) depends on. It lives here
// rather than in the trigger package since trigger must not import task
// (task creation flows one way, from triggers to tasks).
type TriggerTaskCreator struct {
	orch *Orchestrator
}

// NewTriggerTaskCreator constructs a TriggerTaskCreator bound to orch.
func NewTriggerTaskCreator(orch *Orchestrator) *TriggerTaskCreator {
	return &TriggerTaskCreator{orch: orch}
}

// CreateAndStart implements trigger.TaskCreator.
func (a *TriggerTaskCreator) CreateAndStart(ctx context.Context, in trigger.TaskCreateInput) (trigger.TaskRef, error) {
	t, err := a.orch.CreateAndStart(ctx, CreateInput{
		AgentID:                  in.AgentID,
		Description:              in.Description,
		Parameters:               in.Parameters,
		EnableAgentCommunication: in.EnableAgentCommunication,
		RequiresHumanApproval:    in.RequiresHumanApproval,
	})
	if err != nil {
		return trigger.TaskRef{}, err
	}
	return trigger.TaskRef{ID: t.ID}, nil
}
