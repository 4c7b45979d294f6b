// Package task implements the Task Orchestrator (C8, spec §4.8): the
// user-facing task API that persists tasks, starts Agent Execution
// Workflows on the engine, and exposes status/cancel/pause/resume plus
// the replay+live event stream.
package task

import "time"

// Status is the lifecycle state of a Task (spec §3).
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether status ends a task's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is the unit of agent work (spec §3).
type Task struct {
	ID          string
	WorkspaceID string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	AgentID     string
	Description string
	Parameters  map[string]any
	Status      Status
	Result      map[string]any
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
	ExecutionID *string
	Metadata    map[string]any
}

// CreateInput is the input to CreateAndStart.
type CreateInput struct {
	AgentID                  string
	Description              string
	Parameters               map[string]any
	EnableAgentCommunication bool
	RequiresHumanApproval    bool
	TimeoutSeconds           int
	MaxReasoningIterations   int
	BudgetUSD                *float64
}

// ListFilter narrows task listing (spec §6.1 GET tasks).
type ListFilter struct {
	AgentID       string
	CreatorScoped bool
	Limit         int
	Offset        int
}
