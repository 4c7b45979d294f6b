package workflow

import (
	"context"
	"time"

	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

// AgentConfigProvider resolves an agent's execution configuration. Agent/model
// CRUD is out of scope for this platform (spec §13 Non-goals), so this is an
// external collaborator — analogous to trigger.AgentValidator.
type AgentConfigProvider interface {
	BuildAgentConfig(ctx context.Context, agentID string) (AgentConfig, error)
}

// ToolCatalogProvider resolves the set of tools available to an agent,
// normalized to the OpenAI-style function schema (spec §4.7 step 3). The MCP
// tool-server runtime itself is out of scope (spec §13 Non-goals); this
// interface is the seam between the workflow and whatever catalog/registry
// owns tool definitions.
type ToolCatalogProvider interface {
	DiscoverAvailableTools(ctx context.Context, agentID string) ([]ToolSchema, error)
}

// LLMInvoker is the capability InvokeLLM delegates to (implemented by
// llm.Router; kept as a local interface to avoid importing the llm package
// from workflow, which would invert the dependency direction).
type LLMInvoker interface {
	Invoke(ctx context.Context, modelID string, messages []Message, tools []ToolSchema, instruction string) (LLMResponse, error)
}

// ToolInvoker is the capability InvokeTool delegates to (implemented by
// toolrt.Registry).
type ToolInvoker interface {
	Invoke(ctx context.Context, serverInstanceID string, call ToolCall) (ToolResult, error)
}

// EventPublisher is the capability PublishWorkflowEvents delegates to
// (implemented by eventbus.Publisher via a task-event adapter).
type EventPublisher interface {
	PublishWorkflowEvents(ctx context.Context, taskID string, events []Emitted) error
}

// Activities bundles the collaborators the Agent Execution Workflow's five
// activities are implemented against. A single instance is registered with
// the engine; its methods are the activity functions themselves.
type Activities struct {
	Agents    AgentConfigProvider
	Tools     ToolCatalogProvider
	LLM       LLMInvoker
	ToolCalls ToolInvoker
	Events    EventPublisher
}

// activityTimeouts mirrors spec §4.7.3's per-activity start-to-close timeouts
// and retry policies (default 3 attempts; PublishWorkflowEvents is
// fire-and-forget: 5s, 1 attempt).
var activityTimeouts = map[string]time.Duration{
	ActivityBuildAgentConfig:       5 * time.Minute,
	ActivityDiscoverAvailableTools: 5 * time.Minute,
	ActivityInvokeLLM:              2 * time.Minute,
	ActivityInvokeTool:             3 * time.Minute,
	ActivityPublishWorkflowEvents:  5 * time.Second,
}

// defaultRetryPolicy implements the "default 3 attempts" of spec §4.7.3.
var defaultRetryPolicy = engine.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Second, BackoffCoefficient: 2}

// fireAndForgetRetryPolicy backs PublishWorkflowEvents: exactly one attempt,
// since publishing failure must never fail the workflow (spec §4.7.3).
var fireAndForgetRetryPolicy = engine.RetryPolicy{MaxAttempts: 1, InitialInterval: time.Second, BackoffCoefficient: 1}

// RegisterActivities wires a.methods onto eng under the names the workflow
// references via ExecuteActivity calls.
func RegisterActivities(ctx context.Context, eng engine.Engine, a *Activities) error {
	defs := []engine.ActivityDefinition{
		{Name: ActivityBuildAgentConfig, Handler: wrapActivity(a.buildAgentConfig), Options: engine.ActivityOptions{
			Timeout: activityTimeouts[ActivityBuildAgentConfig], RetryPolicy: defaultRetryPolicy,
		}},
		{Name: ActivityDiscoverAvailableTools, Handler: wrapActivity(a.discoverAvailableTools), Options: engine.ActivityOptions{
			Timeout: activityTimeouts[ActivityDiscoverAvailableTools], RetryPolicy: defaultRetryPolicy,
		}},
		{Name: ActivityInvokeLLM, Handler: wrapActivity(a.invokeLLM), Options: engine.ActivityOptions{
			Timeout: activityTimeouts[ActivityInvokeLLM], RetryPolicy: defaultRetryPolicy,
		}},
		{Name: ActivityInvokeTool, Handler: wrapActivity(a.invokeTool), Options: engine.ActivityOptions{
			Timeout: activityTimeouts[ActivityInvokeTool], RetryPolicy: defaultRetryPolicy,
		}},
		{Name: ActivityPublishWorkflowEvents, Handler: wrapActivity(a.publishWorkflowEvents), Options: engine.ActivityOptions{
			Timeout: activityTimeouts[ActivityPublishWorkflowEvents], RetryPolicy: fireAndForgetRetryPolicy,
		}},
	}
	for _, d := range defs {
		if err := eng.RegisterActivity(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// wrapActivity adapts a typed activity function to engine.ActivityFunc's
// any-in/any-out signature; the concrete types still flow through, since
// callers invoke via ExecuteActivity with typed input/result pointers.
func wrapActivity[In, Out any](fn func(ctx context.Context, in In) (Out, error)) engine.ActivityFunc {
	return func(ctx context.Context, input any) (any, error) {
		in, _ := input.(In)
		return fn(ctx, in)
	}
}

type buildAgentConfigInput struct{ AgentID string }

func (a *Activities) buildAgentConfig(ctx context.Context, in buildAgentConfigInput) (AgentConfig, error) {
	return a.Agents.BuildAgentConfig(ctx, in.AgentID)
}

type discoverToolsInput struct{ AgentID string }

func (a *Activities) discoverAvailableTools(ctx context.Context, in discoverToolsInput) ([]ToolSchema, error) {
	return a.Tools.DiscoverAvailableTools(ctx, in.AgentID)
}

// InvokeLLMInput is the typed input for the InvokeLLM activity.
type InvokeLLMInput struct {
	Messages    []Message
	ModelID     string
	Tools       []ToolSchema
	Instruction string
	WorkspaceID string
}

func (a *Activities) invokeLLM(ctx context.Context, in InvokeLLMInput) (LLMResponse, error) {
	return a.LLM.Invoke(ctx, in.ModelID, in.Messages, in.Tools, in.Instruction)
}

// InvokeToolInput is the typed input for the InvokeTool activity.
type InvokeToolInput struct {
	Call             ToolCall
	ServerInstanceID string
	WorkspaceID      string
}

func (a *Activities) invokeTool(ctx context.Context, in InvokeToolInput) (ToolResult, error) {
	return a.ToolCalls.Invoke(ctx, in.ServerInstanceID, in.Call)
}

// PublishWorkflowEventsInput is the typed input for the
// PublishWorkflowEvents activity.
type PublishWorkflowEventsInput struct {
	TaskID string
	Events []Emitted
}

func (a *Activities) publishWorkflowEvents(ctx context.Context, in PublishWorkflowEventsInput) (struct{}, error) {
	// Best-effort per spec §4.7.3: swallow the error rather than propagate it,
	// since the activity is already configured with 1 attempt and a short
	// timeout; a logging sink would be wired here in a fuller deployment.
	_ = a.Events.PublishWorkflowEvents(ctx, in.TaskID, in.Events)
	return struct{}{}, nil
}
