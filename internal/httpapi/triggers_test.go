package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/apperr"
)

func TestQueryRangedInt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(query string) *gin.Context {
		req := httptest.NewRequest("GET", "/x?"+query, nil)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		return c
	}

	t.Run("returns_the_default_when_absent", func(t *testing.T) {
		n, err := queryRangedInt(newCtx(""), "hours", 24, 1, 168)
		require.NoError(t, err)
		assert.Equal(t, 24, n)
	})

	t.Run("accepts_a_value_within_bounds", func(t *testing.T) {
		n, err := queryRangedInt(newCtx("hours=48"), "hours", 24, 1, 168)
		require.NoError(t, err)
		assert.Equal(t, 48, n)
	})

	t.Run("rejects_a_value_below_the_minimum", func(t *testing.T) {
		_, err := queryRangedInt(newCtx("hours=0"), "hours", 24, 1, 168)
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("rejects_a_value_above_the_maximum", func(t *testing.T) {
		_, err := queryRangedInt(newCtx("bucket_size_minutes=2000"), "bucket_size_minutes", 60, 5, 1440)
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("rejects_a_non_integer_value", func(t *testing.T) {
		_, err := queryRangedInt(newCtx("hours=soon"), "hours", 24, 1, 168)
		assert.True(t, apperr.Is(err, apperr.Validation))
	})
}
