package toolrt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/workflow"
)

type fakeCaller struct {
	resp CallResponse
	err  error
}

func (f *fakeCaller) CallTool(_ context.Context, _ CallRequest) (CallResponse, error) {
	return f.resp, f.err
}

func TestRegistryInvoke(t *testing.T) {
	t.Run("returns_a_soft_error_for_an_unregistered_server", func(t *testing.T) {
		r := NewRegistry()
		result, err := r.Invoke(context.Background(), "missing-server", workflow.ToolCall{Name: "search"})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content, "missing-server")
	})

	t.Run("prefers_the_structured_result_when_present", func(t *testing.T) {
		r := NewRegistry()
		r.Register("srv-1", &fakeCaller{resp: CallResponse{
			Result:     json.RawMessage(`"plain"`),
			Structured: json.RawMessage(`{"ok":true}`),
		}})

		result, err := r.Invoke(context.Background(), "srv-1", workflow.ToolCall{Name: "search"})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, `{"ok":true}`, result.Content)
	})

	t.Run("surfaces_an_mcp_level_error_response_as_a_soft_error", func(t *testing.T) {
		r := NewRegistry()
		r.Register("srv-1", &fakeCaller{resp: CallResponse{IsError: true, Result: json.RawMessage(`"bad input"`)}})

		result, err := r.Invoke(context.Background(), "srv-1", workflow.ToolCall{Name: "search"})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("translates_a_json_rpc_error_into_a_soft_error", func(t *testing.T) {
		r := NewRegistry()
		r.Register("srv-1", &fakeCaller{err: &Error{Code: JSONRPCInvalidParams, Message: "bad params"}})

		result, err := r.Invoke(context.Background(), "srv-1", workflow.ToolCall{Name: "search"})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "bad params", result.Content)
	})

	t.Run("propagates_a_transport_error_as_a_go_error", func(t *testing.T) {
		r := NewRegistry()
		r.Register("srv-1", &fakeCaller{err: errors.New("connection reset")})

		_, err := r.Invoke(context.Background(), "srv-1", workflow.ToolCall{Name: "search"})
		assert.Error(t, err)
	})
}
