// Package schedule implements the Schedule Manager (C4, spec §4.4): an
// adapter over the workflow engine's schedule API binding a cron expression
// to a trigger id. Grounded on the teacher's runtime/agent/engine.Engine
// abstraction, specialized here to the narrower schedule-lifecycle surface
// Temporal Schedules expose (Create/Update/Pause/Unpause/Delete) rather than
// the full workflow-start/activity-registration contract.
package schedule

import (
	"context"
	"fmt"
)

// Manager is implemented by engine-specific schedule adapters (Temporal) and
// by an in-memory stand-in for tests.
type Manager interface {
	// Create registers a schedule with id "cron-trigger-{triggerID}" whose
	// action starts a TriggerExecutionWorkflow with the given cron/timezone
	// bound, on the trigger-execution task queue (spec §4.4).
	Create(ctx context.Context, triggerID, cronExpression, timezone string) error
	// Update idempotently edits the same schedule id.
	Update(ctx context.Context, triggerID, cronExpression, timezone string) error
	// Pause toggles the paused bit without cancelling an in-flight execution.
	Pause(ctx context.Context, triggerID string) error
	// Unpause clears the paused bit.
	Unpause(ctx context.Context, triggerID string) error
	// Delete removes the schedule. "Not found" is treated as success
	// (idempotent delete, spec §4.4).
	Delete(ctx context.Context, triggerID string) error
	// Describe returns engine-reported schedule info for the status/health
	// endpoints (spec §6.1 GET /v1/triggers/{id}/status `schedule_info`).
	Describe(ctx context.Context, triggerID string) (*Info, error)
	// ListActive enumerates the ids of the engine's non-paused schedules,
	// used by the reconciler sweep (spec §9 design note) to find orphans.
	// Paused schedules are not listed.
	ListActive(ctx context.Context) ([]string, error)
}

// Info is the engine-reported schedule state.
type Info struct {
	ScheduleID string
	Paused     bool
	NextRun    *string
}

// ScheduleID derives the deterministic engine schedule id for a trigger,
// per spec §4.4 and the invariant in spec §8 ("the engine has a non-paused
// schedule with id cron-trigger-{T.id}").
func ScheduleID(triggerID string) string {
	return fmt.Sprintf("cron-trigger-%s", triggerID)
}
