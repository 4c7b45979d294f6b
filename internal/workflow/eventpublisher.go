package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/orbitflow/agentcore/internal/eventbus"
)

// TaskEventPublisher adapts eventbus.Publisher to the EventPublisher
// interface the PublishWorkflowEvents activity depends on, converting the
// workflow's replay-safe Emitted records into durable DomainEvents (spec
// §4.2, §4.7.3).
type TaskEventPublisher struct {
	bus eventbus.Publisher
}

// NewTaskEventPublisher constructs a TaskEventPublisher bound to bus.
func NewTaskEventPublisher(bus eventbus.Publisher) *TaskEventPublisher {
	return &TaskEventPublisher{bus: bus}
}

// PublishWorkflowEvents implements EventPublisher.
func (p *TaskEventPublisher) PublishWorkflowEvents(ctx context.Context, taskID string, events []Emitted) error {
	for _, ev := range events {
		err := p.bus.Publish(ctx, eventbus.DomainEvent{
			EventID:   uuid.NewString(),
			EventType: ev.EventType,
			TaskID:    taskID,
			Timestamp: ev.Timestamp,
			Data:      ev.Data,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
