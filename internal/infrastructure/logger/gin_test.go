package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveWithLogging(t *testing.T, status int, handler gin.HandlerFunc) *observer.ObservedLogs {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-123") })
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/probe", func(c *gin.Context) {
		if handler != nil {
			handler(c)
			return
		}
		c.Status(status)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe?limit=5", nil))
	return recorded
}

func TestGinMiddleware_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		logs := serveWithLogging(t, tt.status, nil).All()
		require.Len(t, logs, 1, "status %d", tt.status)
		assert.Equal(t, tt.level, logs[0].Level, "status %d", tt.status)
		assert.Equal(t, "http request", logs[0].Message)
	}
}

func TestGinMiddleware_Fields(t *testing.T) {
	logs := serveWithLogging(t, http.StatusOK, nil).All()

	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/probe", fields["path"])
	assert.Equal(t, "limit=5", fields["query"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestGinMiddleware_ExposesRequestLogger(t *testing.T) {
	var fromHandler *zap.Logger
	serveWithLogging(t, http.StatusOK, func(c *gin.Context) {
		fromHandler = GetGinLogger(c)
		c.Status(http.StatusOK)
	})

	require.NotNil(t, fromHandler)
	// Outside a request the accessor falls back to a no-op logger.
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)

	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("normalizer exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "panic recovered", logs[0].Message)
	assert.Equal(t, "/boom", logs[0].ContextMap()["path"])
}
