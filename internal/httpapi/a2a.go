package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitflow/agentcore/internal/task"
)

// a2aHandlers exposes the A2A JSON-RPC surface of spec §6.1/§9 over HTTP.
type a2aHandlers struct {
	srv *task.A2AServer
}

func (h *a2aHandlers) register(rg *gin.RouterGroup) {
	rg.POST("/agents/:agent_id/a2a/rpc", h.rpc)
	rg.GET("/agents/:agent_id/a2a/.well-known/agent.json", h.card)
	rg.POST("/agents/:agent_id/a2a/stream", h.stream)
}

func (h *a2aHandlers) rpc(c *gin.Context) {
	var req task.JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, task.JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &task.JSONRPCError{Code: task.RPCParseError, Message: err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, h.srv.Handle(c.Request.Context(), req))
}

func (h *a2aHandlers) card(c *gin.Context) {
	resp := h.srv.Handle(c.Request.Context(), task.JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "agent/authenticatedExtendedCard",
	})
	c.JSON(http.StatusOK, resp.Result)
}

// stream implements message/stream: the request body carries the same
// A2ASendParams tasks/send expects, but the reply is an SSE stream of the
// resulting task's events rather than a single JSON-RPC response (spec §9,
// §6.2).
func (h *a2aHandlers) stream(c *gin.Context) {
	var req task.JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp := h.srv.Handle(c.Request.Context(), task.JSONRPCRequest{
		JSONRPC: "2.0", ID: req.ID, Method: "tasks/send", Params: req.Params,
	})
	if resp.Error != nil {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	t, ok := resp.Result.(*task.A2ATask)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected task/send result"})
		return
	}
	stream(c, h.srv.StreamEvents(c.Request.Context(), t.ID))
}
