package schedule

import (
	"context"
	"errors"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/telemetry"
)

// TemporalManager adapts Manager onto a real Temporal client.ScheduleClient.
// Each cron trigger gets one Temporal Schedule whose action starts the
// TriggerExecutionWorkflow with {trigger_id, source: "cron", cron, timezone,
// scheduled_time} args on the trigger-execution task queue (spec §4.4).
type TemporalManager struct {
	schedules client.ScheduleClient
	taskQueue string
	log       telemetry.Logger
}

// NewTemporalManager constructs a TemporalManager bound to a Temporal client.
func NewTemporalManager(c client.Client, taskQueue string, log telemetry.Logger) *TemporalManager {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &TemporalManager{schedules: c.ScheduleClient(), taskQueue: taskQueue, log: log}
}

// triggerExecutionWorkflowArgs mirrors the input contract documented in
// spec §4.4 for the cron-fired workflow invocation.
type triggerExecutionWorkflowArgs struct {
	TriggerID     string    `json:"trigger_id"`
	Source        string    `json:"source"`
	Cron          string    `json:"cron"`
	Timezone      string    `json:"timezone"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

func (m *TemporalManager) Create(ctx context.Context, triggerID, cronExpression, timezone string) error {
	id := ScheduleID(triggerID)
	_, err := m.schedules.Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cronExpression},
			TimeZoneName:    timezone,
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        id + "-run",
			Workflow:  "TriggerExecutionWorkflow",
			TaskQueue: m.taskQueue,
			Args: []any{triggerExecutionWorkflowArgs{
				TriggerID: triggerID,
				Source:    "cron",
				Cron:      cronExpression,
				Timezone:  timezone,
			}},
		},
		Overlap:        enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		PauseOnFailure: false,
	})
	if err != nil {
		return apperr.Wrap(apperr.DependencyUnavailable, "create schedule", err)
	}
	return nil
}

func (m *TemporalManager) Update(ctx context.Context, triggerID, cronExpression, timezone string) error {
	handle := m.schedules.GetHandle(ctx, ScheduleID(triggerID))
	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			desc := in.Description
			desc.Schedule.Spec = &client.ScheduleSpec{
				CronExpressions: []string{cronExpression},
				TimeZoneName:    timezone,
			}
			return &client.ScheduleUpdate{Schedule: &desc.Schedule}, nil
		},
	})
	if err != nil {
		if isNotFound(err) {
			// Idempotent edit of a schedule that never existed: recreate it
			// rather than failing, since the trigger row is authoritative.
			return m.Create(ctx, triggerID, cronExpression, timezone)
		}
		return apperr.Wrap(apperr.DependencyUnavailable, "update schedule", err)
	}
	return nil
}

func (m *TemporalManager) Pause(ctx context.Context, triggerID string) error {
	handle := m.schedules.GetHandle(ctx, ScheduleID(triggerID))
	if err := handle.Pause(ctx, client.SchedulePauseOptions{Note: "disabled via trigger service"}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperr.Wrap(apperr.DependencyUnavailable, "pause schedule", err)
	}
	return nil
}

func (m *TemporalManager) Unpause(ctx context.Context, triggerID string) error {
	handle := m.schedules.GetHandle(ctx, ScheduleID(triggerID))
	if err := handle.Unpause(ctx, client.ScheduleUnpauseOptions{Note: "enabled via trigger service"}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperr.Wrap(apperr.DependencyUnavailable, "unpause schedule", err)
	}
	return nil
}

// Delete is best-effort; "not found" is treated as success (spec §4.4).
func (m *TemporalManager) Delete(ctx context.Context, triggerID string) error {
	handle := m.schedules.GetHandle(ctx, ScheduleID(triggerID))
	if err := handle.Delete(ctx); err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperr.Wrap(apperr.DependencyUnavailable, "delete schedule", err)
	}
	return nil
}

func (m *TemporalManager) Describe(ctx context.Context, triggerID string) (*Info, error) {
	handle := m.schedules.GetHandle(ctx, ScheduleID(triggerID))
	desc, err := handle.Describe(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.New(apperr.NotFound, "schedule not found")
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "describe schedule", err)
	}
	info := &Info{ScheduleID: ScheduleID(triggerID), Paused: desc.Schedule.State.Paused}
	if len(desc.Info.NextActionTimes) > 0 {
		s := desc.Info.NextActionTimes[0].Format(time.RFC3339)
		info.NextRun = &s
	}
	return info, nil
}

func (m *TemporalManager) ListActive(ctx context.Context) ([]string, error) {
	iter, err := m.schedules.List(ctx, client.ScheduleListOptions{PageSize: 1000})
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "list schedules", err)
	}
	var ids []string
	for iter.HasNext() {
		s, err := iter.Next()
		if err != nil {
			return nil, apperr.Wrap(apperr.DependencyUnavailable, "iterate schedules", err)
		}
		if s.Paused {
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func isNotFound(err error) bool {
	var notFound *serviceerror.NotFound
	return errors.As(err, &notFound)
}
