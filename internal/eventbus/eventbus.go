// Package eventbus implements the Event Bus (C2, spec §4.2): process-internal
// publish/subscribe of domain events, durable fan-out to a broker (Redis
// pub/sub) and to the per-task task_events table for replay. The in-process
// broadcast shape is grounded on the teacher's runtime/mcp.Broadcaster
// (subscribe/publish/close over buffered channels); the broker + durable log
// combination is this platform's own, sized to spec §4.2's delivery
// semantics (at-least-once to the broker, exactly-once to the DB log via a
// primary key on event_id).
package eventbus

import (
	"context"
	"time"
)

// DomainEvent is the event envelope published from workflow activities (spec
// §4.2; workflow code itself must stay deterministic, so publishing always
// happens from an activity, never directly from workflow code).
type DomainEvent struct {
	EventID   string
	EventType string
	TaskID    string
	Timestamp time.Time
	Data      map[string]any
	Metadata  map[string]any
}

// Publisher accepts a DomainEvent and fans it out to the broker and the
// durable per-task log. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev DomainEvent) error
}

// Terminal event types that close a subscription per spec §4.2 step 5 and
// §6.2's "Terminal event types" table.
var TerminalEventTypes = map[string]bool{
	"workflow.task_completed": true,
	"workflow.task_failed":    true,
	"workflow.task_cancelled": true,
	"workflow.workflow_completed": true,
	"workflow.workflow_failed":    true,
	"workflow.workflow_cancelled": true,
}

// IsTerminal reports whether eventType ends a task's event stream.
func IsTerminal(eventType string) bool {
	return TerminalEventTypes[eventType]
}
