package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalfonso89/travel-assistant-api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})
	return router
}

func TestRequestIDGeneratesUUID(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(RequestID()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	newRouter(RequestID()).ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(SecurityHeaders()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(CORS())
	router.OPTIONS("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerWritesFields(t *testing.T) {
	var buffer bytes.Buffer
	log := logger.NewWithOutput("info", &buffer)

	w := httptest.NewRecorder()
	newRouter(RequestID(), RequestLogger(log)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Contains(t, buffer.String(), `"path":"/ping"`)
	assert.Contains(t, buffer.String(), `"status":200`)
	assert.Contains(t, buffer.String(), `"request_id"`)
}

func TestRequestCounter(t *testing.T) {
	var routes, codes []string
	router := newRouter(RequestCounter(func(route, code string) {
		routes = append(routes, route)
		codes = append(codes, code)
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, []string{"/ping", "unmatched"}, routes)
	assert.Equal(t, []string{"200", "404"}, codes)
}
