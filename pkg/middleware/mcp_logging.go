package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/logging"
)

const maxLoggedArgumentLength = 200

// MCPRequestLogger logs MCP JSON-RPC calls with the tool name, redacted
// arguments and the outcome. Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			// Not every MCP message is a tool call; keep going on bad JSON.
			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			toolName := rpcReq.Params.Name
			fields := []zap.Field{zap.String("tool", toolName)}
			if orgID := auth.GetOrganizationIDFromContext(r.Context()); orgID != uuid.Nil {
				fields = append(fields, zap.String("organization_id", orgID.String()))
			}

			logger.Debug("MCP request", append(fields,
				zap.String("method", rpcReq.Method),
				zap.Any("arguments", sanitizeArguments(rpcReq.Params.Arguments)),
			)...)

			recorder := &mcpResponseRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			fields = append(fields, zap.Duration("duration", time.Since(start)))

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			switch {
			case rpcResp.Error != nil:
				logger.Debug("MCP response error", append(fields,
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", logging.SanitizeText(rpcResp.Error.Message)),
				)...)
			case rpcResp.Result.IsError:
				// Tool failures travel as a successful JSON-RPC result flagged isError.
				logger.Debug("MCP tool error", append(fields,
					zap.String("error_message", logging.SanitizePayload(rpcResp.Result.text())),
				)...)
			default:
				logger.Debug("MCP response success", fields...)
			}
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result toolResult    `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

type toolResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r toolResult) text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, " ")
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder tees the response body so it can be inspected after
// the handler returns.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var sensitiveArgumentKeywords = []string{"password", "secret", "token", "key", "credential"}

// sanitizeArguments redacts sensitive fields and truncates long values.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	result := make(map[string]any, len(args))
	for k, v := range args {
		lowerKey := strings.ToLower(k)
		sensitive := false
		for _, keyword := range sensitiveArgumentKeywords {
			if strings.Contains(lowerKey, keyword) {
				sensitive = true
				break
			}
		}
		if sensitive {
			result[k] = logging.RedactedText
			continue
		}

		if str, ok := v.(string); ok {
			result[k] = logging.TruncateString(logging.SanitizeText(str), maxLoggedArgumentLength)
		} else {
			result[k] = v
		}
	}
	return result
}
