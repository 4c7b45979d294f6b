// Package httpapi wires the platform's HTTP surface (spec §6.1): trigger
// management, agent tasks, webhook ingest, and the A2A JSON-RPC protocol, on
// top of gin-gonic/gin the way the teacher's generated HTTP layer does —
// one engine, grouped routers, handlers kept thin over the service layer.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/orbitflow/agentcore/internal/task"
	"github.com/orbitflow/agentcore/internal/trigger"
	"github.com/orbitflow/agentcore/internal/trigger/webhook"
)

// Dependencies bundles the collaborators the HTTP layer calls into.
type Dependencies struct {
	Triggers *trigger.Service
	Tasks    *task.Orchestrator
	A2A      *task.A2AServer
	Webhooks *webhook.Router
	Auth     *Authenticator
}

// NewServer builds the gin engine and registers every route of spec §6.1.
// Webhook ingest is intentionally left outside the authenticated group: its
// callers are third-party providers (GitHub, Slack, Stripe, ...) that cannot
// carry a platform bearer token, so it is protected instead by the trigger's
// own validation_rules (spec §4.5).
func NewServer(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	(&webhookHandlers{router: deps.Webhooks}).register(&r.RouterGroup)

	v1 := r.Group("/v1")
	v1.Use(deps.Auth.Middleware())

	(&triggerHandlers{svc: deps.Triggers}).register(v1)
	(&taskHandlers{orch: deps.Tasks}).register(v1)
	(&a2aHandlers{srv: deps.A2A}).register(v1)

	return r
}
