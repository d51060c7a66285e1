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

func serveLogged(t *testing.T, requestID string, target string, handler gin.HandlerFunc) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.DebugLevel)
	router := gin.New()
	if requestID != "" {
		router.Use(func(c *gin.Context) {
			c.Set("request_id", requestID)
			c.Next()
		})
	}
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/:any", handler)
	router.POST("/:any", handler)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", target, nil)
	router.ServeHTTP(w, req)
	return w, recorded
}

func requestLogEntry(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	for _, entry := range recorded.All() {
		if entry.Message == "HTTP Request" {
			return entry
		}
	}
	t.Fatal("HTTP Request log entry not found")
	return observer.LoggedEntry{}
}

func logField(entry observer.LoggedEntry, key string) (zapcore.Field, bool) {
	for _, field := range entry.Context {
		if field.Key == key {
			return field, true
		}
	}
	return zapcore.Field{}, false
}

func TestGinMiddleware_LogLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected zapcore.Level
	}{
		{"success logs at info", http.StatusOK, zapcore.InfoLevel},
		{"client error logs at warn", http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{"server error logs at error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, recorded := serveLogged(t, "", "/invoices", func(c *gin.Context) {
				c.JSON(tt.status, gin.H{})
			})

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.expected, requestLogEntry(t, recorded).Level)
		})
	}
}

func TestGinMiddleware_CarriesRequestID(t *testing.T) {
	_, recorded := serveLogged(t, "req-1b2c", "/invoices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	field, found := logField(requestLogEntry(t, recorded), "request_id")
	require.True(t, found, "request_id should be in log fields")
	assert.Equal(t, "req-1b2c", field.String)
}

func TestGinMiddleware_LogsQueryString(t *testing.T) {
	_, recorded := serveLogged(t, "", "/rates?from=USD&to=AED", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	field, found := logField(requestLogEntry(t, recorded), "query")
	require.True(t, found, "query should be in log fields")
	assert.Contains(t, field.String, "from=USD")
}

func TestGinMiddleware_SummaryFields(t *testing.T) {
	_, recorded := serveLogged(t, "", "/invoices", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{})
	})

	entry := requestLogEntry(t, recorded)
	for _, key := range []string{"status", "latency", "client_ip", "user_agent", "method", "path"} {
		_, found := logField(entry, key)
		assert.True(t, found, "field %s should be logged", key)
	}
}

func TestGinMiddleware_EmbedsLoggerInRequestContext(t *testing.T) {
	var fromCtx *zap.Logger
	var requestID string

	serveLogged(t, "req-ctx-1", "/invoices", func(c *gin.Context) {
		fromCtx = FromContext(c.Request.Context())
		requestID = GetRequestID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{})
	})

	require.NotNil(t, fromCtx, "request context should carry the request-scoped logger")
	assert.Equal(t, "req-ctx-1", requestID)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("ledger handler blew up")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/panic", nil)
	assert.NotPanics(t, func() { router.ServeHTTP(w, req) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	logs := recorded.All()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Message, "Panic recovered")
}

func TestGetGinLogger(t *testing.T) {
	var retrieved *zap.Logger

	serveLogged(t, "", "/invoices", func(c *gin.Context) {
		retrieved = GetGinLogger(c)
		c.JSON(http.StatusOK, gin.H{})
	})

	assert.NotNil(t, retrieved)
}

func TestGetGinLogger_OutsideMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var retrieved *zap.Logger
	router := gin.New()
	router.GET("/bare", func(c *gin.Context) {
		retrieved = GetGinLogger(c)
		c.JSON(http.StatusOK, gin.H{})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/bare", nil)
	router.ServeHTTP(w, req)

	require.NotNil(t, retrieved, "no-op logger expected, not nil")
	assert.NotPanics(t, func() { retrieved.Info("noop") })
}
