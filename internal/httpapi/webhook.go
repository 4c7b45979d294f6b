package httpapi

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/orbitflow/agentcore/internal/trigger/webhook"
)

// webhookHandlers adapts the Webhook Router (C5) to gin, accepting any HTTP
// method on the public ingest path (spec §4.5, §6.1).
type webhookHandlers struct {
	router *webhook.Router
}

func (h *webhookHandlers) register(rg *gin.RouterGroup) {
	rg.Any("/webhooks/:webhook_id", h.handle)
}

func (h *webhookHandlers) handle(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	result := h.router.Handle(c.Request.Context(), c.Param("webhook_id"), webhook.Request{
		Method:  c.Request.Method,
		Headers: c.Request.Header,
		Body:    body,
	})
	c.JSON(result.Status, result.Body)
}
