package workflow

import "time"

// Event types published by the Agent Execution Workflow (spec §4.7 step 4-5,
// §6.2's event catalog). All use the dotted "workflow." namespace.
const (
	EventWorkflowStarted        = "workflow.workflow_started"
	EventWorkflowCompleted      = "workflow.workflow_completed"
	EventWorkflowFailed         = "workflow.workflow_failed"
	EventTaskCompleted          = "workflow.task_completed"
	EventTaskFailed             = "workflow.task_failed"
	EventTaskCancelled          = "workflow.task_cancelled"
	EventIterationStarted       = "workflow.iteration_started"
	EventIterationCompleted     = "workflow.iteration_completed"
	EventLLMCallStarted         = "workflow.llm_call_started"
	EventLLMCallCompleted       = "workflow.llm_call_completed"
	EventLLMCallFailed          = "workflow.llm_call_failed"
	EventToolCallStarted        = "workflow.tool_call_started"
	EventToolCallCompleted      = "workflow.tool_call_completed"
	EventToolCallFailed         = "workflow.tool_call_failed"
	EventBudgetWarning          = "workflow.budget_warning"
	EventBudgetExceeded         = "workflow.budget_exceeded"
	EventHumanApprovalRequested = "workflow.human_approval_requested"
	EventHumanApprovalReceived  = "workflow.human_approval_received"
)

// Emitted is one event accumulated by the workflow before being flushed
// through the PublishWorkflowEvents activity (spec §4.7.3: "emitted events
// accumulate in the workflow, then are published after each logical step").
type Emitted struct {
	EventType string
	Timestamp time.Time
	Data      map[string]any
}

// Emitter accumulates events deterministically inside workflow code. Actual
// publishing happens out-of-band via an activity, so workflow code itself
// never performs I/O.
type Emitter struct {
	taskID string
	now    func() time.Time
	events []Emitted
}

// NewEmitter constructs an Emitter. now must be a replay-safe clock (the
// engine's WorkflowContext.Now, not time.Now).
func NewEmitter(taskID string, now func() time.Time) *Emitter {
	return &Emitter{taskID: taskID, now: now}
}

// Emit records an event for the next flush.
func (e *Emitter) Emit(eventType string, data map[string]any) {
	e.events = append(e.events, Emitted{EventType: eventType, Timestamp: e.now(), Data: data})
}

// Drain returns all accumulated events and clears the buffer, for handing to
// PublishWorkflowEvents.
func (e *Emitter) Drain() []Emitted {
	out := e.events
	e.events = nil
	return out
}

// Latest returns up to limit most-recently emitted events without clearing
// them, backing the get_latest_events query (spec §4.7.2).
func (e *Emitter) Latest(limit int) []Emitted {
	if limit <= 0 || limit > len(e.events) {
		limit = len(e.events)
	}
	return append([]Emitted(nil), e.events[len(e.events)-limit:]...)
}

// All returns every event emitted so far, backing get_workflow_events.
func (e *Emitter) All() []Emitted {
	return append([]Emitted(nil), e.events...)
}

// CurrentStateView is the synchronous, side-effect-free snapshot returned by
// the get_current_state query (spec §4.7.2).
type CurrentStateView struct {
	Status           State   `json:"status"`
	CurrentIteration int     `json:"current_iteration"`
	Success          bool    `json:"success"`
	Cost             float64 `json:"cost"`
	BudgetRemaining  float64 `json:"budget_remaining"`
	Paused           bool    `json:"paused"`
	PauseReason      string  `json:"pause_reason,omitempty"`
}
