package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitflow/agentcore/internal/eventbus"
	"github.com/orbitflow/agentcore/internal/task"
)

// taskHandlers registers the Task Orchestrator surface of spec §6.1/§6.2.
type taskHandlers struct {
	orch *task.Orchestrator
}

func (h *taskHandlers) register(rg *gin.RouterGroup) {
	rg.POST("/agents/:agent_id/tasks", h.createStreaming)
	rg.POST("/agents/:agent_id/tasks/sync", h.createSync)
	rg.GET("/agents/:agent_id/tasks", h.list)
	rg.GET("/agents/:agent_id/tasks/:id", h.get)
	rg.GET("/agents/:agent_id/tasks/:id/status", h.status)
	rg.DELETE("/agents/:agent_id/tasks/:id", h.cancel)
	rg.POST("/agents/:agent_id/tasks/:id/pause", h.pause)
	rg.POST("/agents/:agent_id/tasks/:id/resume", h.resume)
	rg.GET("/agents/:agent_id/tasks/:id/events", h.events)
	rg.GET("/agents/:agent_id/tasks/:id/events/stream", h.eventsStream)
}

type createTaskRequest struct {
	Description              string         `json:"description" binding:"required"`
	Parameters               map[string]any `json:"parameters"`
	EnableAgentCommunication bool           `json:"enable_agent_communication"`
	RequiresHumanApproval    bool           `json:"requires_human_approval"`
	TimeoutSeconds           int            `json:"timeout_seconds"`
	MaxReasoningIterations   int            `json:"max_reasoning_iterations"`
	BudgetUSD                *float64       `json:"budget_usd"`
}

func (r createTaskRequest) toInput(agentID string) task.CreateInput {
	return task.CreateInput{
		AgentID:                  agentID,
		Description:              r.Description,
		Parameters:               r.Parameters,
		EnableAgentCommunication: r.EnableAgentCommunication,
		RequiresHumanApproval:    r.RequiresHumanApproval,
		TimeoutSeconds:           r.TimeoutSeconds,
		MaxReasoningIterations:   r.MaxReasoningIterations,
		BudgetUSD:                r.BudgetUSD,
	}
}

// createSync starts a task and returns the persisted row immediately
// (spec §6.1 POST .../tasks/sync), without waiting on completion.
func (h *taskHandlers) createSync(c *gin.Context) {
	var in createTaskRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.orch.CreateAndStart(c.Request.Context(), in.toInput(c.Param("agent_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// createStreaming starts a task and immediately follows it with an SSE
// stream of its events (spec §6.2), closing the connection on the first
// terminal event.
func (h *taskHandlers) createStreaming(c *gin.Context) {
	var in createTaskRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.orch.CreateAndStart(c.Request.Context(), in.toInput(c.Param("agent_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	stream(c, h.orch.StreamEvents(c.Request.Context(), t.ID))
}

func (h *taskHandlers) list(c *gin.Context) {
	f := task.ListFilter{
		AgentID: c.Query("agent_id"),
		Limit:   queryInt(c, "limit", 0),
		Offset:  queryInt(c, "offset", 0),
	}
	tasks, err := h.orch.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *taskHandlers) get(c *gin.Context) {
	t, err := h.orch.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *taskHandlers) status(c *gin.Context) {
	t, err := h.orch.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": t.ID, "status": t.Status})
}

func (h *taskHandlers) cancel(c *gin.Context) {
	if err := h.orch.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": task.StatusCancelled})
}

type signalRequest struct {
	Reason string `json:"reason"`
}

func (h *taskHandlers) pause(c *gin.Context) {
	var in signalRequest
	_ = c.ShouldBindJSON(&in)
	if err := h.orch.Pause(c.Request.Context(), c.Param("id"), in.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": task.StatusPaused})
}

func (h *taskHandlers) resume(c *gin.Context) {
	var in signalRequest
	_ = c.ShouldBindJSON(&in)
	if err := h.orch.Resume(c.Request.Context(), c.Param("id"), in.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": task.StatusRunning})
}

func (h *taskHandlers) events(c *gin.Context) {
	evs, err := h.orch.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

func (h *taskHandlers) eventsStream(c *gin.Context) {
	stream(c, h.orch.StreamEvents(c.Request.Context(), c.Param("id")))
}

// stream drains ch as Server-Sent Events per spec §6.2's framing:
// "event: <type>\ndata: <json>\n\n", terminated by a "[DONE]" data frame
// once a terminal event type is observed or the channel closes.
func stream(c *gin.Context, ch <-chan eventbus.DomainEvent) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-ch
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return true
		}
		_, _ = io.WriteString(w, "event: "+ev.EventType+"\n")
		_, _ = io.WriteString(w, "data: "+string(payload)+"\n\n")
		if eventbus.IsTerminal(ev.EventType) {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}
		return true
	})
}
