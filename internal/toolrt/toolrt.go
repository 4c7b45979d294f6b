// Package toolrt implements the InvokeTool capability (spec §4.7 step 4):
// dispatching a tool call named by the LLM to the MCP server instance that
// hosts it. It adapts a transport-specific MCP caller (stdio, HTTP/SSE,
// JSON-RPC) to the single Invoker interface the workflow activities depend
// on, following the teacher's runtime/mcp Caller split between transport
// and protocol concerns.
package toolrt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/workflow"
)

// JSON-RPC canonical error codes, per the MCP/JSON-RPC spec.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Caller invokes a single MCP tool. It is implemented by transport-specific
// clients; toolrt.Registry dispatches to one by server instance id.
type Caller interface {
	CallTool(ctx context.Context, req CallRequest) (CallResponse, error)
}

// CallRequest describes one MCP tools/call invocation.
type CallRequest struct {
	Tool    string
	Payload json.RawMessage
}

// CallResponse carries the MCP tool result.
type CallResponse struct {
	Result     json.RawMessage
	Structured json.RawMessage
	IsError    bool
}

// Error represents a JSON-RPC error returned by an MCP server.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Registry routes InvokeTool calls by ToolSchema.ServerInstanceID to the
// Caller registered for that MCP server instance (spec §4.7 step 3: tools
// are "normalized... keyed by server_instance_id").
type Registry struct {
	callers map[string]Caller
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{callers: map[string]Caller{}}
}

// Register binds a Caller to a server instance id.
func (r *Registry) Register(serverInstanceID string, c Caller) {
	r.callers[serverInstanceID] = c
}

// Invoke dispatches a tool call to its server instance's Caller, and
// translates the result into workflow.ToolResult. A tool call against an
// unregistered server, or an MCP-level error response, surfaces as a
// workflow.ToolResult with IsError set rather than a Go error: the ReAct
// loop feeds tool errors back to the LLM as a tool message so it can retry
// or adjust course, per spec §4.7 step 4.
func (r *Registry) Invoke(ctx context.Context, serverInstanceID string, call workflow.ToolCall) (workflow.ToolResult, error) {
	caller, ok := r.callers[serverInstanceID]
	if !ok {
		return workflow.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("tool %q is not available: no MCP server instance %q registered", call.Name, serverInstanceID),
		}, nil
	}
	payload, err := json.Marshal(call.Arguments)
	if err != nil {
		return workflow.ToolResult{}, apperr.Wrap(apperr.Validation, "encode tool call arguments", err)
	}
	resp, err := caller.CallTool(ctx, CallRequest{Tool: call.Name, Payload: payload})
	if err != nil {
		var rpcErr *Error
		if ok := asRPCError(err, &rpcErr); ok {
			return workflow.ToolResult{IsError: true, Content: rpcErr.Message}, nil
		}
		return workflow.ToolResult{}, apperr.Wrap(apperr.DependencyUnavailable, "mcp call_tool", err)
	}
	if resp.IsError {
		return workflow.ToolResult{IsError: true, Content: string(resp.Result)}, nil
	}
	content := resp.Result
	if len(resp.Structured) > 0 {
		content = resp.Structured
	}
	return workflow.ToolResult{Content: string(content)}, nil
}

func asRPCError(err error, target **Error) bool {
	rpcErr, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = rpcErr
	return true
}
