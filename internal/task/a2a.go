package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/eventbus"
)

// JSON-RPC error codes used by the A2A adapter (spec §9). -32001/-32002 are
// this platform's own extension codes, following the JSON-RPC convention of
// reserving -32000..-32099 for implementation-defined errors; -32700..-32603
// are the standard codes.
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
	RPCTaskNotFound   = -32001
	RPCNotCancellable = -32002
)

// JSONRPCRequest is one A2A JSON-RPC 2.0 call (spec §6.1 POST
// /v1/agents/{agent_id}/a2a/rpc).
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSONRPCResponse is the A2A JSON-RPC 2.0 reply envelope.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError is the A2A JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// A2ATask is the A2A wire representation of a Task (spec §9's "thin adapter
// over the Task Orchestrator; the conversion is mechanical").
type A2ATask struct {
	ID     string        `json:"id"`
	Status A2ATaskStatus `json:"status"`
}

// A2ATaskStatus is the A2A status envelope.
type A2ATaskStatus struct {
	State     string      `json:"state"`
	Message   *A2AMessage `json:"message,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// A2AMessage is one A2A conversation message.
type A2AMessage struct {
	Role  string           `json:"role"`
	Parts []A2AMessagePart `json:"parts"`
}

// A2AMessagePart is one part of an A2A message.
type A2AMessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// A2ASendParams is the params object for tasks/send and message/send.
type A2ASendParams struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agentId"`
	Message   *A2AMessage    `json:"message"`
	SessionID *string        `json:"sessionId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// A2AIDParams is the params object for tasks/get and tasks/cancel.
type A2AIDParams struct {
	ID string `json:"id"`
}

// AgentCard is the A2A discovery document returned by
// agent/authenticatedExtendedCard.
type AgentCard struct {
	ProtocolVersion string  `json:"protocolVersion"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	URL             string  `json:"url"`
	Version         string  `json:"version"`
	Skills          []Skill `json:"skills"`
}

// Skill is one A2A skill entry in an AgentCard.
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// A2AServer implements the A2A protocol surface (spec §6.1, §9) as a thin
// adapter over Orchestrator: the conversion is mechanical, preserving
// task_id and mapping statuses (cancelled -> canceled, running -> working).
type A2AServer struct {
	orch    *Orchestrator
	baseURL string
}

// NewA2AServer constructs an A2AServer bound to orch.
func NewA2AServer(orch *Orchestrator, baseURL string) *A2AServer {
	return &A2AServer{orch: orch, baseURL: baseURL}
}

// Handle dispatches one JSON-RPC call to the matching A2A method. It never
// returns a Go error: every failure, including a malformed request, is
// encoded as a JSON-RPC error response so the caller always gets back valid
// JSON-RPC.
func (s *A2AServer) Handle(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "tasks/send", "message/send":
		result, err := s.send(ctx, req.Params)
		return finish(resp, result, err)
	case "tasks/get":
		result, err := s.get(ctx, req.Params)
		return finish(resp, result, err)
	case "tasks/cancel":
		result, err := s.cancel(ctx, req.Params)
		return finish(resp, result, err)
	case "agent/authenticatedExtendedCard":
		return finish(resp, s.card(), nil)
	default:
		resp.Error = &JSONRPCError{Code: RPCMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
		return resp
	}
}

func finish(resp JSONRPCResponse, result any, err error) JSONRPCResponse {
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func (s *A2AServer) send(ctx context.Context, raw json.RawMessage) (*A2ATask, error) {
	var p A2ASendParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "decode tasks/send params", err)
	}
	description := messageText(p.Message)
	t, err := s.orch.CreateAndStart(ctx, CreateInput{
		AgentID:     p.AgentID,
		Description: description,
		Parameters:  p.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return toA2ATask(t), nil
}

func (s *A2AServer) get(ctx context.Context, raw json.RawMessage) (*A2ATask, error) {
	var p A2AIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "decode tasks/get params", err)
	}
	t, err := s.orch.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return toA2ATask(t), nil
}

func (s *A2AServer) cancel(ctx context.Context, raw json.RawMessage) (*A2ATask, error) {
	var p A2AIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "decode tasks/cancel params", err)
	}
	t, err := s.orch.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, apperr.New(apperr.Validation, "task is not cancellable")
	}
	if err := s.orch.Cancel(ctx, p.ID); err != nil {
		return nil, err
	}
	t, err = s.orch.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return toA2ATask(t), nil
}

func (s *A2AServer) card() AgentCard {
	return AgentCard{
		ProtocolVersion: "1.0",
		Name:            "agentcore",
		URL:             s.baseURL,
		Version:         "1.0",
		Skills: []Skill{
			{ID: "run-task", Name: "run-task", Description: "Execute an agent task"},
		},
	}
}

// StreamEvents backs the message/stream SSE method: httpapi drives the SSE
// response loop directly off this channel rather than through Handle, since
// a streaming reply doesn't fit one JSONRPCResponse envelope.
func (s *A2AServer) StreamEvents(ctx context.Context, taskID string) <-chan eventbus.DomainEvent {
	return s.orch.StreamEvents(ctx, taskID)
}

func messageText(m *A2AMessage) string {
	if m == nil {
		return ""
	}
	for _, part := range m.Parts {
		if part.Type == "text" {
			return part.Text
		}
	}
	return ""
}

func toA2ATask(t *Task) *A2ATask {
	return &A2ATask{
		ID: t.ID,
		Status: A2ATaskStatus{
			State:     mapStatusToA2A(t.Status),
			Timestamp: t.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// mapStatusToA2A converts a Task's internal Status into the A2A protocol's
// state vocabulary (spec §9): cancelled -> canceled, running -> working;
// paused has no A2A equivalent so it surfaces as input-required, the closest
// standard A2A state for "execution is blocked on external input."
func mapStatusToA2A(s Status) string {
	switch s {
	case StatusCancelled:
		return "canceled"
	case StatusRunning:
		return "working"
	case StatusPaused:
		return "input-required"
	case StatusSubmitted, StatusPending:
		return "submitted"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return string(s)
	}
}

func toRPCError(err error) *JSONRPCError {
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	}
	if ae == nil {
		return &JSONRPCError{Code: RPCInternalError, Message: err.Error()}
	}
	switch ae.Kind {
	case apperr.NotFound:
		return &JSONRPCError{Code: RPCTaskNotFound, Message: ae.Error()}
	case apperr.Validation:
		if ae.Message == "task is not cancellable" {
			return &JSONRPCError{Code: RPCNotCancellable, Message: ae.Error()}
		}
		return &JSONRPCError{Code: RPCInvalidParams, Message: ae.Error()}
	default:
		return &JSONRPCError{Code: RPCInternalError, Message: ae.Error()}
	}
}
