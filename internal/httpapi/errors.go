package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitflow/agentcore/internal/apperr"
)

// writeError maps an apperr.Kind to the HTTP status table of spec §7 and
// writes a JSON error body. Cross-workspace accesses report identically to
// "not found" (apperr.AccessDenied maps to the same 404 as apperr.NotFound)
// to avoid leaking existence across tenants.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.MissingContext, apperr.Validation:
		status = http.StatusBadRequest
	case apperr.NotFound, apperr.AccessDenied:
		status = http.StatusNotFound
	case apperr.DependencyUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.BudgetExceeded:
		status = http.StatusUnprocessableEntity
	case apperr.Timeout:
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
