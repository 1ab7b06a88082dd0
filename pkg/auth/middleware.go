package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the access token and requires an organization ID.
// Sets claims and token in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		if err := m.authService.RequireOrganizationID(claims); err != nil {
			m.writeError(w, http.StatusBadRequest, "bad_request", "Missing organization ID in token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
