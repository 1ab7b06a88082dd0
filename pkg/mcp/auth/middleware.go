// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"context"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
)

// FailureRecorder receives failed authentication attempts. *mcp.AuditLogger
// satisfies it.
type FailureRecorder interface {
	RecordAuthFailure(organizationID, reason, clientIP string)
}

// Middleware provides MCP-specific authentication middleware.
// Unlike the general auth middleware, this returns RFC 6750 WWW-Authenticate
// headers for OAuth 2.0 Bearer token authentication errors.
type Middleware struct {
	authService auth.AuthService
	failures    FailureRecorder
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware. failures may be nil.
func NewMiddleware(authService auth.AuthService, failures FailureRecorder, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		failures:    failures,
		logger:      logger,
	}
}

// RequireAuth validates the access token and requires an organization scope.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP auth failed: invalid or missing token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.recordFailure(r, "", "invalid_token")
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		if err := m.authService.RequireOrganizationID(claims); err != nil {
			m.logger.Debug("MCP auth failed: missing organization ID",
				zap.String("path", r.URL.Path))
			m.recordFailure(r, "", "missing_organization")
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is missing the organization scope")
			return
		}

		ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
		ctx = context.WithValue(ctx, auth.TokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) recordFailure(r *http.Request, organizationID, reason string) {
	if m.failures == nil {
		return
	}
	clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		clientIP = r.RemoteAddr
	}
	m.failures.RecordAuthFailure(organizationID, reason, clientIP)
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
