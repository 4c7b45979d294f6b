package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/orbitflow/agentcore/internal/apperr"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing_context_is_bad_request", apperr.New(apperr.MissingContext, "x"), http.StatusBadRequest},
		{"validation_is_bad_request", apperr.New(apperr.Validation, "x"), http.StatusBadRequest},
		{"not_found_is_404", apperr.New(apperr.NotFound, "x"), http.StatusNotFound},
		{"access_denied_is_also_404", apperr.New(apperr.AccessDenied, "x"), http.StatusNotFound},
		{"dependency_unavailable_is_503", apperr.New(apperr.DependencyUnavailable, "x"), http.StatusServiceUnavailable},
		{"budget_exceeded_is_422", apperr.New(apperr.BudgetExceeded, "x"), http.StatusUnprocessableEntity},
		{"timeout_is_504", apperr.New(apperr.Timeout, "x"), http.StatusGatewayTimeout},
		{"unmapped_kind_is_500", apperr.New(apperr.TriggerExecution, "x"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeError(c, tc.err)

			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestWriteErrorAccessDeniedIndistinguishableFromNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	notFoundRec := httptest.NewRecorder()
	notFoundCtx, _ := gin.CreateTestContext(notFoundRec)
	writeError(notFoundCtx, apperr.New(apperr.NotFound, "trigger missing"))

	deniedRec := httptest.NewRecorder()
	deniedCtx, _ := gin.CreateTestContext(deniedRec)
	writeError(deniedCtx, apperr.New(apperr.AccessDenied, "wrong workspace"))

	assert.Equal(t, notFoundRec.Code, deniedRec.Code, "cross-workspace access must not be distinguishable from a genuine 404")
}
