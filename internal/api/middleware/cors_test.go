package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func preflight(r *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/gui/state", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSWildcard(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig()))

	w := preflight(r, "http://ide.local")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig().WithOrigins([]string{"http://ide.local"})))

	w := preflight(r, "http://ide.local")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://ide.local", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(r, "http://evil.local")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWithOriginsKeepsDefaultsWhenEmpty(t *testing.T) {
	cfg := DefaultCORSConfig().WithOrigins(nil)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
}
