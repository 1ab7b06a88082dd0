package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the id assigned by RequestLogger, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLogger assigns a request id and logs every request when it finishes.
// Server errors log at WARN, everything else at DEBUG.
// Pass nil logger to disable logging; the request id is still assigned.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if orgID := auth.GetOrganizationIDFromContext(r.Context()); orgID != uuid.Nil {
				fields = append(fields, zap.String("organization_id", orgID.String()))
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				logger.Warn("HTTP request", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

// Recover turns a handler panic into a 500 and logs the stack. If the handler
// already started a response (e.g. a progress stream) nothing more is written.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("Handler panic",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				if wrapped.headerWritten {
					return
				}
				wrapped.Header().Set("Content-Type", "application/json")
				wrapped.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(wrapped).Encode(map[string]string{
					"error":       "internal_error",
					"details":     "internal server error",
					"userMessage": "Something went wrong on our side. Please try again.",
				})
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}

// responseWriter records the status and forwards Flush so streamed responses
// keep working behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
