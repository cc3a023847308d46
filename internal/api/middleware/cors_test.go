package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/stretchr/testify/assert"
)

func corsRouter(enabled bool, origins ...string) *gin.Engine {
	cfg := &config.Config{
		Security: config.SecurityConfig{
			CORSEnabled: enabled,
			CORSOrigins: origins,
		},
	}
	router := setupTestRouter()
	router.Use(CORSMiddleware(cfg))
	router.GET("/api/v1/points", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"points": []string{}})
	})
	return router
}

func corsGet(router *gin.Engine, origin string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/points", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware(t *testing.T) {
	console := "https://console.conecta.plus"
	portaria := "http://portaria.local:3000"

	t.Run("Preflight from an allowed origin", func(t *testing.T) {
		router := corsRouter(true, console, portaria)

		req, _ := http.NewRequest(http.MethodOptions, "/api/v1/points", nil)
		req.Header.Set("Origin", console)
		req.Header.Set("Access-Control-Request-Method", "GET")
		req.Header.Set("Access-Control-Request-Headers", "Authorization,Content-Type")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, console, w.Header().Get("Access-Control-Allow-Origin"))
		for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), method)
		}
		allowedHeaders := w.Header().Get("Access-Control-Allow-Headers")
		assert.Contains(t, allowedHeaders, "Authorization")
		assert.Contains(t, allowedHeaders, "Content-Type")
	})

	t.Run("Allowed origins are echoed with credentials", func(t *testing.T) {
		router := corsRouter(true, console, portaria)

		for _, origin := range []string{console, portaria} {
			w := corsGet(router, origin)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		}
	})

	t.Run("Unlisted origin gets no allow header", func(t *testing.T) {
		router := corsRouter(true, console)

		w := corsGet(router, "https://intruder.example")
		assert.NotEqual(t, "https://intruder.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Disabled CORS sets no headers at all", func(t *testing.T) {
		router := corsRouter(false)

		w := corsGet(router, console)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
