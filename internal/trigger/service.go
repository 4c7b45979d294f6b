package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/eventbus"
	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/trigger/schedule"
	"github.com/orbitflow/agentcore/internal/wscontext"
)

// TaskCreateInput is the subset of Task Orchestrator's CreateAndStart input
// the Trigger Service needs to build (spec §4.6 step 5-6, §4.8).
type TaskCreateInput struct {
	AgentID                  string
	Description              string
	Parameters               map[string]any
	EnableAgentCommunication bool
	RequiresHumanApproval    bool
}

// TaskRef is the minimal Task Orchestrator response the service consumes.
type TaskRef struct {
	ID string
}

// TaskCreator abstracts the Task Orchestrator (C8) dependency so the
// trigger package never imports the task package, avoiding a cycle — task
// creation requests flow one way, from triggers to tasks.
type TaskCreator interface {
	CreateAndStart(ctx context.Context, in TaskCreateInput) (TaskRef, error)
}

// AgentValidator abstracts the out-of-scope agent/model CRUD collaborator:
// the service only needs to know an agent id exists before wiring a trigger
// to it (spec §4.6 "validates agent exists").
type AgentValidator interface {
	AgentExists(ctx context.Context, agentID string) (bool, error)
}

// LLMParameterExtractor is the optional LLM-assisted task-parameter builder
// referenced in spec §4.6 step 5 ("optional LLM-extracted parameters,
// non-overriding"). Nil by default.
type LLMParameterExtractor interface {
	ExtractParameters(ctx context.Context, trigger *Trigger, eventData map[string]any) (map[string]any, error)
}

// Service implements the Trigger Service (C6, spec §4.6): the policy layer
// for validation, lifecycle, condition evaluation, task-parameter building,
// and consecutive-failure auto-disable.
type Service struct {
	store     *Store
	schedules schedule.Manager
	tasks     TaskCreator
	agents    AgentValidator
	bus       eventbus.Publisher
	evaluator ConditionEvaluator
	llmEval   LLMConditionEvaluator // optional, tried first per spec §4.6 step 3
	params    LLMParameterExtractor // optional
	log       telemetry.Logger

	// ConditionErrorDefault is the outcome used when the deterministic
	// evaluator returns an error. SimpleEvaluator and CELEvaluator never
	// return one: they resolve their own failures (missing path, bad
	// expression) to their ErrorDefault field, which is the permissive (true)
	// vs strict (false) setting for them; this field does not change it.
	ConditionErrorDefault bool
}

// NewService constructs a Trigger Service. evaluator must not be nil; pass
// NewSimpleEvaluator(log) for the spec's default behavior.
func NewService(
	store *Store,
	schedules schedule.Manager,
	tasks TaskCreator,
	agents AgentValidator,
	bus eventbus.Publisher,
	evaluator ConditionEvaluator,
	log telemetry.Logger,
) *Service {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Service{
		store: store, schedules: schedules, tasks: tasks, agents: agents,
		bus: bus, evaluator: evaluator, log: log, ConditionErrorDefault: true,
	}
}

// WithLLMConditionEvaluator wires an optional LLM-backed evaluator tried
// before the deterministic one (spec §4.6 step 3).
func (s *Service) WithLLMConditionEvaluator(e LLMConditionEvaluator) *Service {
	s.llmEval = e
	return s
}

// WithLLMParameterExtractor wires the optional LLM-assisted parameter
// builder (spec §4.6 step 5).
func (s *Service) WithLLMParameterExtractor(e LLMParameterExtractor) *Service {
	s.params = e
	return s
}

// Create validates and persists a trigger, then for cron triggers registers
// an engine schedule. Scheduling failure does not roll back persistence —
// the trigger is retained with a logged "persisted but not scheduled"
// condition (spec §4.4, §4.6).
func (s *Service) Create(ctx context.Context, in Create) (*Trigger, error) {
	scope, present := wscontext.From(ctx)
	if !present || scope.Empty() {
		return nil, apperr.New(apperr.MissingContext, "workspace/user scope required")
	}
	if err := Validate(in, scope.UserID); err != nil {
		return nil, err
	}
	exists, err := s.agents.AgentExists(ctx, in.AgentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "validate agent", err)
	}
	if !exists {
		return nil, apperr.New(apperr.Validation, "agent_id does not reference an existing agent")
	}
	if in.FailureThreshold == 0 {
		in.FailureThreshold = 5
	}

	t, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if t.Kind == KindCron {
		if err := s.schedules.Create(ctx, t.ID, *t.CronExpression, *t.Timezone); err != nil {
			s.log.Warn(ctx, "trigger persisted but not scheduled",
				"trigger_id", t.ID, "err", err)
		}
	}
	return t, nil
}

// Update applies a partial update; if cron_expression or is_active changes
// on a cron trigger, the engine schedule is updated in step (spec §4.6).
func (s *Service) Update(ctx context.Context, id string, in Update) (*Trigger, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}

	if updated.Kind == KindCron {
		cronChanged := in.CronExpression != nil || in.Timezone != nil
		if cronChanged {
			if err := s.schedules.Update(ctx, id, *updated.CronExpression, *updated.Timezone); err != nil {
				s.log.Warn(ctx, "schedule update failed after trigger persisted", "trigger_id", id, "err", err)
			}
		}
		if in.IsActive != nil && *in.IsActive != existing.IsActive {
			if *in.IsActive {
				_ = s.schedules.Unpause(ctx, id)
			} else {
				_ = s.schedules.Pause(ctx, id)
			}
		}
	}
	return updated, nil
}

// Delete removes the engine schedule first (idempotent), then the DB row
// (spec §4.6, §3 lifecycle).
func (s *Service) Delete(ctx context.Context, id string) error {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Kind == KindCron {
		if err := s.schedules.Delete(ctx, id); err != nil {
			return apperr.Wrap(apperr.DependencyUnavailable, "delete schedule", err)
		}
	}
	return s.store.Delete(ctx, id)
}

// Enable sets is_active=true and unpauses the schedule.
func (s *Service) Enable(ctx context.Context, id string) (*Trigger, error) {
	active := true
	t, err := s.store.Update(ctx, id, Update{IsActive: &active})
	if err != nil {
		return nil, err
	}
	if t.Kind == KindCron {
		_ = s.schedules.Unpause(ctx, id)
	}
	return t, nil
}

// Disable sets is_active=false and pauses the schedule. Idempotent: calling
// it twice leaves is_active=false without a second transition (spec §8).
func (s *Service) Disable(ctx context.Context, id string) (*Trigger, error) {
	active := false
	t, err := s.store.Update(ctx, id, Update{IsActive: &active})
	if err != nil {
		return nil, err
	}
	if t.Kind == KindCron {
		_ = s.schedules.Pause(ctx, id)
	}
	return t, nil
}

// GetByWebhookID is the lookup used by the Webhook Router (C5).
func (s *Service) GetByWebhookID(ctx context.Context, webhookID string) (*Trigger, error) {
	return s.store.GetByWebhookID(ctx, webhookID)
}

// Get returns a single trigger by id.
func (s *Service) Get(ctx context.Context, id string) (*Trigger, error) {
	return s.store.Get(ctx, id)
}

// List returns triggers per spec §6.1's filter set.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Trigger, error) {
	return s.store.List(ctx, f)
}

// Executions returns a paginated execution history (spec §6.1 executions
// endpoint).
func (s *Service) Executions(ctx context.Context, triggerID string, f ExecutionFilter) (*ExecutionPage, error) {
	return s.store.ListExecutions(ctx, triggerID, f)
}

// Metrics returns aggregated execution analytics over the last `since`
// window (spec §6.1 metrics endpoint).
func (s *Service) Metrics(ctx context.Context, triggerID string, since time.Time) (*Metrics, error) {
	return s.store.Metrics(ctx, triggerID, since)
}

// Timeline returns bucketed execution counts (spec §6.1 timeline endpoint).
func (s *Service) Timeline(ctx context.Context, triggerID string, since time.Time, bucketMinutes int) ([]TimelineBucket, error) {
	return s.store.Timeline(ctx, triggerID, since, bucketMinutes)
}

// Status builds the GET /v1/triggers/{id}/status response, overlaying
// engine-reported schedule info for cron triggers (spec §6.1).
func (s *Service) Status(ctx context.Context, id string) (*Status, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &Status{
		TriggerID:                  t.ID,
		IsActive:                   t.IsActive,
		LastExecutionAt:            t.LastExecutionAt,
		ConsecutiveFailures:        t.ConsecutiveFailures,
		ShouldDisableDueToFailures: t.ConsecutiveFailures >= t.FailureThreshold,
	}
	if t.Kind == KindCron {
		if info, err := s.schedules.Describe(ctx, id); err == nil {
			st.ScheduleInfo = map[string]any{
				"schedule_id": info.ScheduleID,
				"paused":      info.Paused,
				"next_run":    info.NextRun,
			}
		}
	}
	return st, nil
}

// Health returns the GET /v1/triggers/health document: the count of active
// triggers of every kind and the count of non-paused engine schedules
// (spec §6.1). It does not compute or report reconciler drift.
func (s *Service) Health(ctx context.Context) (map[string]any, error) {
	active, err := s.store.List(ctx, ListFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	scheduled, err := s.schedules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":            "ok",
		"active_triggers":   len(active),
		"active_schedules":  len(scheduled),
	}, nil
}

// ExecuteTrigger runs the algorithm of spec §4.6: load, active-check,
// conditions, task creation, execution recording, and auto-disable.
func (s *Service) ExecuteTrigger(ctx context.Context, triggerID string, eventData map[string]any) (*TriggerExecution, error) {
	start := time.Now()

	t, err := s.store.Get(ctx, triggerID)
	if err != nil {
		return nil, err
	}

	if !t.IsActive {
		return s.recordSkipped(ctx, t, eventData, start, "inactive")
	}

	conditionsMet := true
	if len(t.Conditions) > 0 {
		conditionsMet, err = s.evaluateConditions(ctx, t, eventData)
		if err != nil {
			s.log.Warn(ctx, "condition evaluation error; using ConditionErrorDefault", "trigger_id", t.ID, "err", err)
			conditionsMet = s.ConditionErrorDefault
		}
	}
	if !conditionsMet {
		return s.recordSkipped(ctx, t, eventData, start, "conditions_not_met")
	}

	params := s.buildTaskParameters(ctx, t, eventData)

	ref, err := s.tasks.CreateAndStart(ctx, TaskCreateInput{
		AgentID:     t.AgentID,
		Description: "trigger:" + t.Name,
		Parameters:  params,
	})
	if err != nil {
		return s.recordFailureAndMaybeDisable(ctx, t, eventData, start, err.Error())
	}

	elapsed := time.Since(start).Milliseconds()
	exec, err := s.store.RecordExecution(ctx, TriggerExecution{
		TriggerID:       t.ID,
		Status:          ExecutionSuccess,
		TaskID:          &ref.ID,
		ExecutionTimeMs: elapsed,
		TriggerData:     eventData,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateExecutionTracking(ctx, t.ID, exec.ExecutedAt, 0); err != nil {
		s.log.Warn(ctx, "failed to reset consecutive_failures", "trigger_id", t.ID, "err", err)
	}
	return exec, nil
}

func (s *Service) evaluateConditions(ctx context.Context, t *Trigger, eventData map[string]any) (bool, error) {
	if s.llmEval != nil {
		ok, err := s.llmEval.Evaluate(ctx, t.Conditions, eventData)
		if err == nil {
			return ok, nil
		}
		s.log.Warn(ctx, "llm condition evaluator failed; falling back to simple evaluator", "trigger_id", t.ID, "err", err)
	}
	return s.evaluator.Evaluate(ctx, t.Conditions, eventData)
}

func (s *Service) buildTaskParameters(ctx context.Context, t *Trigger, eventData map[string]any) map[string]any {
	params := make(map[string]any, len(t.TaskParameters)+5)
	for k, v := range t.TaskParameters {
		params[k] = v
	}
	params["trigger_id"] = t.ID
	params["trigger_type"] = string(t.Kind)
	params["trigger_name"] = t.Name
	params["execution_time"] = time.Now().UTC().Format(time.RFC3339)
	params["trigger_data"] = eventData

	if s.params != nil {
		extracted, err := s.params.ExtractParameters(ctx, t, eventData)
		if err != nil {
			s.log.Warn(ctx, "llm parameter extraction failed; continuing without it", "trigger_id", t.ID, "err", err)
		} else {
			for k, v := range extracted {
				if _, exists := params[k]; !exists {
					params[k] = v
				}
			}
		}
	}
	return params
}

func (s *Service) recordSkipped(ctx context.Context, t *Trigger, eventData map[string]any, start time.Time, reason string) (*TriggerExecution, error) {
	elapsed := time.Since(start).Milliseconds()
	msg := reason
	return s.store.RecordExecution(ctx, TriggerExecution{
		TriggerID:       t.ID,
		Status:          ExecutionFailed,
		ExecutionTimeMs: elapsed,
		ErrorMessage:    &msg,
		TriggerData:     eventData,
	})
}

// recordFailureAndMaybeDisable records a failed execution, increments
// consecutive_failures, and auto-disables the trigger once the threshold is
// reached (spec §4.6 "Auto-disable", §8 testable property).
func (s *Service) recordFailureAndMaybeDisable(ctx context.Context, t *Trigger, eventData map[string]any, start time.Time, reason string) (*TriggerExecution, error) {
	elapsed := time.Since(start).Milliseconds()
	exec, err := s.store.RecordExecution(ctx, TriggerExecution{
		TriggerID:       t.ID,
		Status:          ExecutionFailed,
		ExecutionTimeMs: elapsed,
		ErrorMessage:    &reason,
		TriggerData:     eventData,
	})
	if err != nil {
		return nil, err
	}

	failures := t.ConsecutiveFailures + 1
	if err := s.store.UpdateExecutionTracking(ctx, t.ID, exec.ExecutedAt, failures); err != nil {
		s.log.Warn(ctx, "failed to update consecutive_failures", "trigger_id", t.ID, "err", err)
		return exec, nil
	}

	if failures >= t.FailureThreshold {
		if _, err := s.Disable(ctx, t.ID); err != nil {
			s.log.Error(ctx, "auto-disable failed", "trigger_id", t.ID, "err", err)
			return exec, nil
		}
		if s.bus != nil {
			_ = s.bus.Publish(ctx, eventForAutoDisable(t.ID, failures))
		}
	}
	return exec, nil
}

// eventForAutoDisable builds the trigger.auto_disabled notification (spec
// §4.6 "Auto-disable"). It carries no task_id — it is a trigger-scoped
// event, not a per-task one — so it is published for observability but
// will not surface on any task's event stream.
func eventForAutoDisable(triggerID string, failures int) eventbus.DomainEvent {
	return eventbus.DomainEvent{
		EventID:   uuid.New().String(),
		EventType: "trigger.auto_disabled",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"trigger_id":           triggerID,
			"consecutive_failures": failures,
			"disabled_at":          time.Now().UTC().Format(time.RFC3339),
			"reason":               "consecutive_failures_threshold_exceeded",
		},
	}
}
