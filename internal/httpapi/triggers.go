package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/trigger"
)

// triggerHandlers registers the full Trigger Service surface of spec §6.1.
type triggerHandlers struct {
	svc *trigger.Service
}

func (h *triggerHandlers) register(rg *gin.RouterGroup) {
	rg.POST("/triggers", h.create)
	rg.GET("/triggers", h.list)
	rg.GET("/triggers/health", h.health)
	rg.GET("/triggers/:id", h.get)
	rg.PUT("/triggers/:id", h.update)
	rg.DELETE("/triggers/:id", h.delete)
	rg.POST("/triggers/:id/enable", h.enable)
	rg.POST("/triggers/:id/disable", h.disable)
	rg.GET("/triggers/:id/executions", h.executions)
	rg.GET("/triggers/:id/status", h.status)
	rg.GET("/triggers/:id/metrics", h.metrics)
	rg.GET("/triggers/:id/timeline", h.timeline)
}

func (h *triggerHandlers) create(c *gin.Context) {
	var in trigger.Create
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *triggerHandlers) list(c *gin.Context) {
	f := trigger.ListFilter{
		AgentID:    c.Query("agent_id"),
		ActiveOnly: c.Query("active_only") == "true",
		Limit:      queryInt(c, "limit", 0),
	}
	if kind := c.Query("trigger_type"); kind != "" {
		f.TriggerType = trigger.Kind(kind)
	}
	triggers, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggers": triggers})
}

func (h *triggerHandlers) get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *triggerHandlers) update(c *gin.Context) {
	var in trigger.Update
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *triggerHandlers) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *triggerHandlers) enable(c *gin.Context) {
	t, err := h.svc.Enable(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *triggerHandlers) disable(c *gin.Context) {
	t, err := h.svc.Disable(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *triggerHandlers) executions(c *gin.Context) {
	f := trigger.ExecutionFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if s := c.Query("status"); s != "" {
		f.Status = trigger.ExecutionStatus(s)
	}
	page, err := h.svc.Executions(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *triggerHandlers) status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *triggerHandlers) metrics(c *gin.Context) {
	hours, err := queryRangedInt(c, "hours", 24, 1, 168)
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := h.svc.Metrics(c.Request.Context(), c.Param("id"), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *triggerHandlers) timeline(c *gin.Context) {
	hours, err := queryRangedInt(c, "hours", 24, 1, 168)
	if err != nil {
		writeError(c, err)
		return
	}
	bucket, err := queryRangedInt(c, "bucket_size_minutes", 60, 5, 1440)
	if err != nil {
		writeError(c, err)
		return
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	buckets, err := h.svc.Timeline(c.Request.Context(), c.Param("id"), since, bucket)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (h *triggerHandlers) health(c *gin.Context) {
	doc, err := h.svc.Health(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryRangedInt parses an integer query parameter, defaulting when absent
// and rejecting values outside [min, max] with a validation error (spec
// §6.1's "hours=1..168"/"bucket_size_minutes=5..1440" query contracts).
func queryRangedInt(c *gin.Context, key string, def, min, max int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.New(apperr.Validation, key+" must be an integer")
	}
	if n < min || n > max {
		return 0, apperr.New(apperr.Validation, fmt.Sprintf("%s must be between %d and %d", key, min, max))
	}
	return n, nil
}
