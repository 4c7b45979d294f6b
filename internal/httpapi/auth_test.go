package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/wscontext"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret-works-since-verification-is-upstream"))
	require.NoError(t, err)
	return tok
}

func TestAuthenticatorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("populates_scope_from_claims_without_checking_the_signature", func(t *testing.T) {
		tok := signedToken(t, Claims{
			WorkspaceID:      "ws-1",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		})

		var gotScope wscontext.Scope
		var gotPresent bool
		r := gin.New()
		r.Use(NewAuthenticator().Middleware())
		r.GET("/ping", func(c *gin.Context) {
			gotScope, gotPresent = wscontext.From(c.Request.Context())
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, gotPresent)
		assert.Equal(t, wscontext.Scope{WorkspaceID: "ws-1", UserID: "user-1"}, gotScope)
	})

	t.Run("rejects_a_missing_bearer_token", func(t *testing.T) {
		r := gin.New()
		r.Use(NewAuthenticator().Middleware())
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects_a_malformed_token", func(t *testing.T) {
		r := gin.New()
		r.Use(NewAuthenticator().Middleware())
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects_a_token_missing_workspace_id", func(t *testing.T) {
		tok := signedToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})

		r := gin.New()
		r.Use(NewAuthenticator().Middleware())
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
