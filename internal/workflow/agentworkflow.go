package workflow

import (
	"context"
	"fmt"

	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

// reactFrameworkTemplate renders the system prompt appended on the first
// iteration (spec §4.7 step 4: "ReAct framework: agent name+instruction,
// goal description, success criteria, available tools").
const reactFrameworkTemplate = `You are %s.

%s

Goal: %s

Success criteria: produce a final answer and call the "completion" tool with
the result once the goal is satisfied. Do not call completion until the task
is actually done.

Available tools: %s`

// AgentExecutionWorkflow implements the C7 durable state machine (spec §4.7).
// It is registered with the engine under WorkflowName and runs with
// AgentExecutionRequest as input.
func AgentExecutionWorkflow(wfc engine.WorkflowContext, input any) (any, error) {
	req, ok := input.(AgentExecutionRequest)
	if !ok {
		return nil, fmt.Errorf("agent execution workflow: unexpected input type %T", input)
	}
	return runAgentExecution(wfc, req)
}

// runState holds the workflow's mutable fields; kept distinct from
// AgentExecutionRequest so queries can report a live CurrentStateView without
// exposing the request verbatim.
type runState struct {
	status           State
	currentIteration int
	success          bool
	finalResponse    string
	paused           bool
	pauseReason      string
}

func runAgentExecution(wfc engine.WorkflowContext, req AgentExecutionRequest) (AgentExecutionResult, error) {
	emitter := NewEmitter(req.TaskID, wfc.Now)
	budget := NewBudgetTracker(req.BudgetUSD)
	state := &runState{status: StateInitializing}

	registerQueries(wfc, state, emitter, budget)

	emitter.Emit(EventWorkflowStarted, map[string]any{
		"task_id": req.TaskID, "agent_id": req.AgentID, "workspace_id": req.WorkspaceID,
	})
	flush(wfc, req.TaskID, emitter)

	agentCfg, err := loadAgentConfig(wfc, req.AgentID)
	if err != nil {
		return finalizeFailed(wfc, state, emitter, req, err)
	}

	toolSchemas, err := discoverTools(wfc, req.AgentID)
	if err != nil {
		return finalizeFailed(wfc, state, emitter, req, err)
	}

	maxIterations := req.MaxReasoningIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	state.status = StateExecuting
	var messages []Message
	var totalCost float64

	for {
		if wfc.Context().Err() != nil {
			return finalizeCancelled(wfc, state, emitter, req)
		}
		if state.success {
			break
		}
		if state.currentIteration >= maxIterations {
			break
		}
		if budget.IsExceeded() {
			emitter.Emit(EventBudgetExceeded, map[string]any{"spent": budget.Spent(), "limit": budget.Limit})
			break
		}
		awaitUnpaused(wfc, state)

		state.currentIteration++
		emitter.Emit(EventIterationStarted, map[string]any{"iteration": state.currentIteration})

		if state.currentIteration == 1 {
			toolNames := make([]string, 0, len(toolSchemas))
			for _, t := range toolSchemas {
				toolNames = append(toolNames, t.Name)
			}
			system := fmt.Sprintf(reactFrameworkTemplate, agentCfg.Name, agentCfg.Instruction, agentCfg.GoalTemplate, toolNames)
			messages = append(messages, Message{Role: "system", Content: system})
			messages = append(messages, Message{Role: "user", Content: req.TaskQuery})
		}

		emitter.Emit(EventLLMCallStarted, map[string]any{"iteration": state.currentIteration})
		llmResp, err := invokeLLM(wfc, InvokeLLMInput{
			Messages: messages, ModelID: agentCfg.ModelID, Tools: toolSchemas,
			Instruction: agentCfg.Instruction, WorkspaceID: req.WorkspaceID,
		})
		if err != nil {
			emitter.Emit(EventLLMCallFailed, map[string]any{"iteration": state.currentIteration, "error": err.Error()})
			flush(wfc, req.TaskID, emitter)
			return finalizeFailed(wfc, state, emitter, req, err)
		}
		budget.Add(llmResp.UsageCost)
		totalCost += llmResp.UsageCost
		emitter.Emit(EventLLMCallCompleted, map[string]any{"iteration": state.currentIteration, "cost": llmResp.UsageCost})
		if budget.CrossedWarnThreshold() {
			emitter.Emit(EventBudgetWarning, map[string]any{"spent": budget.Spent(), "limit": budget.Limit})
		}
		messages = append(messages, Message{Role: "assistant", Content: llmResp.Content, ToolCalls: llmResp.ToolCalls})

		calls := ExtractToolCalls(llmResp)
		toolCalls, completion := SplitCompletion(calls)

		for _, call := range toolCalls {
			schema := findSchema(toolSchemas, call.Name)
			if needsApproval(req, schema) {
				if err := awaitApproval(wfc, state, emitter, call); err != nil {
					return finalizeCancelled(wfc, state, emitter, req)
				}
			}
			emitter.Emit(EventToolCallStarted, map[string]any{"iteration": state.currentIteration, "tool": call.Name, "tool_call_id": call.ID})
			serverInstanceID := ""
			if schema != nil {
				serverInstanceID = schema.ServerInstanceID
			}
			result, err := invokeTool(wfc, InvokeToolInput{Call: call, ServerInstanceID: serverInstanceID, WorkspaceID: req.WorkspaceID})
			if err != nil {
				emitter.Emit(EventToolCallFailed, map[string]any{"iteration": state.currentIteration, "tool": call.Name, "error": err.Error()})
				messages = append(messages, Message{Role: "tool", Content: "tool invocation failed: " + err.Error(), ToolCallID: call.ID, Name: call.Name})
				continue
			}
			emitter.Emit(EventToolCallCompleted, map[string]any{"iteration": state.currentIteration, "tool": call.Name, "is_error": result.IsError})
			messages = append(messages, Message{Role: "tool", Content: result.Content, ToolCallID: call.ID, Name: call.Name})
		}

		if completion != nil {
			state.success = true
			if s, ok := completion.Arguments["result"].(string); ok {
				state.finalResponse = s
			} else {
				state.finalResponse = llmResp.Content
			}
		}

		emitter.Emit(EventIterationCompleted, map[string]any{"iteration": state.currentIteration, "success": state.success})
		flush(wfc, req.TaskID, emitter)
	}

	state.status = StateCompleted
	result := AgentExecutionResult{
		Success: state.success, IterationsCompleted: state.currentIteration,
		TotalCost: totalCost, FinalResponse: state.finalResponse,
	}
	if !state.success {
		result.Error = "max iterations reached or budget exceeded"
	}
	emitter.Emit(EventWorkflowCompleted, map[string]any{
		"success": result.Success, "iterations_completed": result.IterationsCompleted,
		"total_cost": result.TotalCost,
	})
	flush(wfc, req.TaskID, emitter)
	return result, nil
}

func findSchema(schemas []ToolSchema, name string) *ToolSchema {
	for i := range schemas {
		if schemas[i].Name == name {
			return &schemas[i]
		}
	}
	return nil
}

// needsApproval implements spec §4.7.1's gating condition: task-level
// requires_human_approval OR the specific tool's requires_user_confirmation.
func needsApproval(req AgentExecutionRequest, schema *ToolSchema) bool {
	if req.RequiresHumanApproval {
		return true
	}
	return schema != nil && schema.RequiresUserConfirmation
}

func awaitApproval(wfc engine.WorkflowContext, state *runState, emitter *Emitter, call ToolCall) error {
	state.status = StateWaitingForApproval
	state.paused = true
	emitter.Emit(EventHumanApprovalRequested, map[string]any{
		"tool_name": call.Name, "tool_call_id": call.ID, "iteration": state.currentIteration, "arguments": call.Arguments,
	})
	resume := wfc.SignalChannel(SignalResume)
	var reason string
	if err := resume.Receive(wfc.Context(), &reason); err != nil {
		return err
	}
	if wfc.Context().Err() != nil {
		return context.Canceled
	}
	emitter.Emit(EventHumanApprovalReceived, map[string]any{"tool_name": call.Name, "tool_call_id": call.ID})
	state.status = StateExecuting
	state.paused = false
	return nil
}

// awaitUnpaused implements spec §5's "workflows additionally suspend on
// await_condition(not paused)": it first drains any pending pause signal
// non-blockingly, then, if paused, blocks on resume before the loop
// continues (spec §4.7.2: pause/resume are the sole source of the paused
// flag outside of human-approval gating).
func awaitUnpaused(wfc engine.WorkflowContext, state *runState) {
	pause := wfc.SignalChannel(SignalPause)
	var reason string
	for pause.ReceiveAsync(&reason) {
		state.paused = true
		state.pauseReason = reason
	}
	if !state.paused {
		return
	}
	resume := wfc.SignalChannel(SignalResume)
	var resumeReason string
	_ = resume.Receive(wfc.Context(), &resumeReason)
	state.paused = false
	state.pauseReason = ""
}

func loadAgentConfig(wfc engine.WorkflowContext, agentID string) (AgentConfig, error) {
	var cfg AgentConfig
	err := wfc.ExecuteActivity(wfc.Context(), engine.ActivityRequest{
		Name: ActivityBuildAgentConfig, Input: buildAgentConfigInput{AgentID: agentID},
		Timeout: activityTimeouts[ActivityBuildAgentConfig], RetryPolicy: defaultRetryPolicy,
	}, &cfg)
	if err != nil {
		return AgentConfig{}, err
	}
	if cfg.ID == "" || cfg.Name == "" || cfg.ModelID == "" {
		return AgentConfig{}, fmt.Errorf("agent config missing required fields for agent %q", agentID)
	}
	return cfg, nil
}

func discoverTools(wfc engine.WorkflowContext, agentID string) ([]ToolSchema, error) {
	var tools []ToolSchema
	err := wfc.ExecuteActivity(wfc.Context(), engine.ActivityRequest{
		Name: ActivityDiscoverAvailableTools, Input: discoverToolsInput{AgentID: agentID},
		Timeout: activityTimeouts[ActivityDiscoverAvailableTools], RetryPolicy: defaultRetryPolicy,
	}, &tools)
	return tools, err
}

func invokeLLM(wfc engine.WorkflowContext, in InvokeLLMInput) (LLMResponse, error) {
	var resp LLMResponse
	err := wfc.ExecuteActivity(wfc.Context(), engine.ActivityRequest{
		Name: ActivityInvokeLLM, Input: in,
		Timeout: activityTimeouts[ActivityInvokeLLM], RetryPolicy: defaultRetryPolicy,
	}, &resp)
	return resp, err
}

func invokeTool(wfc engine.WorkflowContext, in InvokeToolInput) (ToolResult, error) {
	var res ToolResult
	err := wfc.ExecuteActivity(wfc.Context(), engine.ActivityRequest{
		Name: ActivityInvokeTool, Input: in,
		Timeout: activityTimeouts[ActivityInvokeTool], RetryPolicy: defaultRetryPolicy,
	}, &res)
	return res, err
}

// flush publishes accumulated events through PublishWorkflowEvents, per spec
// §4.7.3's "emitted events accumulate in the workflow, then are published
// after each logical step; best-effort". Errors are intentionally ignored:
// the activity itself is configured with 1 attempt and never fails the
// workflow.
func flush(wfc engine.WorkflowContext, taskID string, emitter *Emitter) {
	events := emitter.Drain()
	if len(events) == 0 {
		return
	}
	var ignored struct{}
	_ = wfc.ExecuteActivity(wfc.Context(), engine.ActivityRequest{
		Name: ActivityPublishWorkflowEvents, Input: PublishWorkflowEventsInput{TaskID: taskID, Events: events},
		Timeout: activityTimeouts[ActivityPublishWorkflowEvents], RetryPolicy: fireAndForgetRetryPolicy,
	}, &ignored)
}

func finalizeFailed(wfc engine.WorkflowContext, state *runState, emitter *Emitter, req AgentExecutionRequest, cause error) (AgentExecutionResult, error) {
	state.status = StateFailed
	emitter.Emit(EventWorkflowFailed, map[string]any{"error": cause.Error()})
	flush(wfc, req.TaskID, emitter)
	return AgentExecutionResult{Success: false, Error: cause.Error(), IterationsCompleted: state.currentIteration}, nil
}

func finalizeCancelled(wfc engine.WorkflowContext, state *runState, emitter *Emitter, req AgentExecutionRequest) (AgentExecutionResult, error) {
	state.status = StateCancelled
	emitter.Emit(EventTaskCancelled, map[string]any{"iteration": state.currentIteration})
	flush(wfc, req.TaskID, emitter)
	return AgentExecutionResult{Success: false, Error: "cancelled", IterationsCompleted: state.currentIteration}, context.Canceled
}

// registerQueries wires the three synchronous, side-effect-free queries of
// spec §4.7.2 onto the engine's query surface. The in-memory and Temporal
// engines expose query registration differently; this indirection keeps
// agentworkflow.go backend-agnostic by going through the same
// WorkflowContext the rest of the workflow uses.
func registerQueries(wfc engine.WorkflowContext, state *runState, emitter *Emitter, budget *BudgetTracker) {
	registrar, ok := wfc.(engine.QueryRegistrar)
	if !ok {
		return
	}
	_ = registrar.SetQueryHandler(QueryCurrentState, func(...any) (any, error) {
		return CurrentStateView{
			Status: state.status, CurrentIteration: state.currentIteration, Success: state.success,
			Cost: budget.Spent(), BudgetRemaining: budget.Remaining(), Paused: state.paused, PauseReason: state.pauseReason,
		}, nil
	})
	_ = registrar.SetQueryHandler(QueryLatestEvents, func(args ...any) (any, error) {
		limit := 0
		if len(args) > 0 {
			if n, ok := args[0].(int); ok {
				limit = n
			}
		}
		return emitter.Latest(limit), nil
	})
	_ = registrar.SetQueryHandler(QueryWorkflowEvents, func(...any) (any, error) {
		return emitter.All(), nil
	})
}
