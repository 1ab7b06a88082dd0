package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vaforge/vaforge-engine/pkg/auth"
)

func serveMCP(t *testing.T, logger *zap.Logger, reqBody, respBody string) *httptest.ResponseRecorder {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(respBody))
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
	rec := httptest.NewRecorder()
	MCPRequestLogger(logger)(handler).ServeHTTP(rec, req)
	return rec
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_knowledge_base","arguments":{}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`)

		require.Equal(t, 2, logs.Len())
		requestLog := logs.All()[0]
		assert.Equal(t, "MCP request", requestLog.Message)
		assert.Equal(t, "tools/call", requestLog.ContextMap()["method"])
		assert.Equal(t, "get_knowledge_base", requestLog.ContextMap()["tool"])

		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response success", responseLog.Message)
		assert.NotNil(t, responseLog.ContextMap()["duration"])
	})

	t.Run("logs JSON-RPC error", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_learning_events"}}`,
			`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`)

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response error", responseLog.Message)
		assert.Equal(t, int64(-32602), responseLog.ContextMap()["error_code"])
		assert.Equal(t, "invalid params", responseLog.ContextMap()["error_message"])
	})

	t.Run("logs tool result flagged as error", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"record_insight"}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"category is required"}]}}`)

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP tool error", responseLog.Message)
		assert.Equal(t, "category is required", responseLog.ContextMap()["error_message"])
	})

	t.Run("includes organization from claims", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		orgID := uuid.New()

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		})
		req := httptest.NewRequest(http.MethodPost, "/mcp",
			bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{OrganizationID: orgID.String()}))
		MCPRequestLogger(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, orgID.String(), logs.All()[0].ContextMap()["organization_id"])
	})

	t.Run("request body still readable downstream", func(t *testing.T) {
		core, _ := observer.New(zapcore.DebugLevel)
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`

		var seen string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := new(bytes.Buffer)
			_, _ = buf.ReadFrom(r.Body)
			seen = buf.String()
		})
		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
		MCPRequestLogger(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, body, seen)
	})

	t.Run("nil logger passes through", func(t *testing.T) {
		rec := serveMCP(t, nil, `{}`, `{"jsonrpc":"2.0","id":1,"result":{}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid request JSON still served", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		rec := serveMCP(t, zap.New(core), `not json`, `{"jsonrpc":"2.0","id":1,"result":{}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.GreaterOrEqual(t, logs.Len(), 2)
	})
}

func TestSanitizeArguments(t *testing.T) {
	long := strings.Repeat("a", 300)
	args := map[string]any{
		"category":  "client_preferences",
		"api_key":   "abc",
		"password":  "hunter2",
		"statement": long,
		"note":      "see postgres://admin:s3cret@db/app",
		"count":     3,
	}

	got := sanitizeArguments(args)

	assert.Equal(t, "client_preferences", got["category"])
	assert.Equal(t, "[REDACTED]", got["api_key"])
	assert.Equal(t, "[REDACTED]", got["password"])
	assert.Equal(t, 3, got["count"])
	assert.True(t, strings.HasSuffix(got["statement"].(string), "..."))
	assert.LessOrEqual(t, len(got["statement"].(string)), maxLoggedArgumentLength+3)
	assert.NotContains(t, got["note"], "s3cret")

	assert.Nil(t, sanitizeArguments(nil))
}
