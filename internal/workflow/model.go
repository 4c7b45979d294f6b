// Package workflow implements the Agent Execution Workflow (C7, spec §4.7):
// a durable ReAct-style state machine that runs on the workflow engine,
// driving an LLM through tool calls until it emits a completion, a budget
// or iteration cap is hit, or it is cancelled.
package workflow

// Names of the workflow and its activities as registered with the engine.
const (
	WorkflowName = "AgentExecutionWorkflow"

	ActivityBuildAgentConfig       = "BuildAgentConfig"
	ActivityDiscoverAvailableTools = "DiscoverAvailableTools"
	ActivityInvokeLLM              = "InvokeLLM"
	ActivityInvokeTool             = "InvokeTool"
	ActivityPublishWorkflowEvents  = "PublishWorkflowEvents"

	SignalPause  = "pause"
	SignalResume = "resume"

	QueryCurrentState  = "get_current_state"
	QueryLatestEvents  = "get_latest_events"
	QueryWorkflowEvents = "get_workflow_events"
)

// State is the workflow's lifecycle status (spec §4.7 state machine).
type State string

const (
	StateInitializing       State = "initializing"
	StateExecuting          State = "executing"
	StateWaitingForApproval State = "waiting_for_approval"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
	StateCancelled          State = "cancelled"
)

// AgentExecutionRequest is the workflow's input (spec §4.7).
type AgentExecutionRequest struct {
	TaskID                   string
	AgentID                  string
	UserID                   string
	WorkspaceID              string
	TaskQuery                string
	TaskParameters           map[string]any
	TimeoutSeconds           int
	MaxReasoningIterations   int
	EnableAgentCommunication bool
	RequiresHumanApproval    bool
	BudgetUSD                *float64
	WorkflowMetadata         map[string]any
}

// AgentExecutionResult is the workflow's terminal output (spec §4.7 step 5).
type AgentExecutionResult struct {
	Success             bool
	IterationsCompleted int
	TotalCost           float64
	FinalResponse       string
	Error               string
}

// Message is one entry in the ReAct conversation history (spec §3
// WorkflowState.messages).
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is one structured tool invocation requested by the LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// AgentConfig is the result of BuildAgentConfig (spec §4.7 step 2).
type AgentConfig struct {
	ID           string
	Name         string
	ModelID      string
	Instruction  string
	GoalTemplate string
}

// ToolSchema is one tool normalized to the OpenAI-style function schema
// (spec §4.7 step 3).
type ToolSchema struct {
	Name                     string
	Description              string
	Parameters               map[string]any
	ServerInstanceID         string
	RequiresUserConfirmation bool
}

// LLMResponse is the result of InvokeLLM (spec §4.7 step 4).
type LLMResponse struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
	UsageCost float64
}

// ToolResult is the result of InvokeTool.
type ToolResult struct {
	Content string
	IsError bool
}
