package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCORSRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	r := newCORSRouter([]string{"https://school.example/"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://school.example")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "https://school.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	r := newCORSRouter([]string{"https://school.example"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)

	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOpenListAllowsAnyOrigin(t *testing.T) {
	r := newCORSRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	r.ServeHTTP(w, req)

	require.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAnswersPreflight(t *testing.T) {
	r := newCORSRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, allowedMethods, w.Header().Get("Access-Control-Allow-Methods"))
}
