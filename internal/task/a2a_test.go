package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestA2AServerHandle(t *testing.T) {
	t.Run("tasks_send_creates_and_starts_a_task", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		srv := NewA2AServer(orch, "https://agentcore.example/a2a")

		resp := srv.Handle(ctx, JSONRPCRequest{
			JSONRPC: "2.0", ID: 1, Method: "tasks/send",
			Params: rpcParams(t, A2ASendParams{
				AgentID: "support-agent",
				Message: &A2AMessage{Role: "user", Parts: []A2AMessagePart{{Type: "text", Text: "help me"}}},
			}),
		})

		require.Nil(t, resp.Error)
		a2aTask, ok := resp.Result.(*A2ATask)
		require.True(t, ok)
		assert.Equal(t, "working", a2aTask.Status.State)
	})

	t.Run("tasks_get_returns_a_not_found_rpc_error_for_an_unknown_id", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		srv := NewA2AServer(orch, "https://agentcore.example/a2a")

		resp := srv.Handle(ctx, JSONRPCRequest{
			JSONRPC: "2.0", ID: 2, Method: "tasks/get",
			Params: rpcParams(t, A2AIDParams{ID: "ghost"}),
		})

		require.NotNil(t, resp.Error)
		assert.Equal(t, RPCTaskNotFound, resp.Error.Code)
	})

	t.Run("tasks_cancel_maps_terminal_status_to_canceled", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		srv := NewA2AServer(orch, "https://agentcore.example/a2a")

		sendResp := srv.Handle(ctx, JSONRPCRequest{
			JSONRPC: "2.0", ID: 3, Method: "tasks/send",
			Params: rpcParams(t, A2ASendParams{AgentID: "support-agent", Message: &A2AMessage{}}),
		})
		created := sendResp.Result.(*A2ATask)

		cancelResp := srv.Handle(ctx, JSONRPCRequest{
			JSONRPC: "2.0", ID: 4, Method: "tasks/cancel",
			Params: rpcParams(t, A2AIDParams{ID: created.ID}),
		})
		require.Nil(t, cancelResp.Error)
		cancelled := cancelResp.Result.(*A2ATask)
		assert.Equal(t, "canceled", cancelled.Status.State)

		secondCancel := srv.Handle(ctx, JSONRPCRequest{
			JSONRPC: "2.0", ID: 5, Method: "tasks/cancel",
			Params: rpcParams(t, A2AIDParams{ID: created.ID}),
		})
		require.NotNil(t, secondCancel.Error)
		assert.Equal(t, RPCNotCancellable, secondCancel.Error.Code)
	})

	t.Run("unknown_method_returns_method_not_found", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		srv := NewA2AServer(orch, "https://agentcore.example/a2a")

		resp := srv.Handle(ctx, JSONRPCRequest{JSONRPC: "2.0", ID: 6, Method: "tasks/bogus"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, RPCMethodNotFound, resp.Error.Code)
	})

	t.Run("agent_authenticated_extended_card_returns_the_agent_card", func(t *testing.T) {
		orch, _, ctx := newOrchestrator(t)
		srv := NewA2AServer(orch, "https://agentcore.example/a2a")

		resp := srv.Handle(ctx, JSONRPCRequest{JSONRPC: "2.0", ID: 7, Method: "agent/authenticatedExtendedCard"})
		require.Nil(t, resp.Error)
		card := resp.Result.(AgentCard)
		assert.Equal(t, "https://agentcore.example/a2a", card.URL)
	})
}
