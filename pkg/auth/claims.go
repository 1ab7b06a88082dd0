// Package auth validates the signed access tokens that front every vaforge-engine API.
// Tokens are issued by the platform login service; the engine only verifies them.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the access token claims.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the organization the session is acting for.
type Claims struct {
	jwt.RegisteredClaims
	OrganizationID string   `json:"oid,omitempty"`   // Organization UUID
	Email          string   `json:"email,omitempty"` // User email address
	Roles          []string `json:"roles,omitempty"` // User roles within the organization
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithClaims returns a context carrying claims, as the auth middleware does.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ExtractClaimsFromContext extracts organization ID and user ID from JWT claims in context.
// Returns error if not authenticated or claims are invalid.
func ExtractClaimsFromContext(ctx context.Context) (uuid.UUID, string, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil, "", fmt.Errorf("authentication required: no claims in context")
	}

	if claims.OrganizationID == "" {
		return uuid.Nil, "", fmt.Errorf("missing organization ID in JWT claims")
	}

	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid organization ID format: %w", err)
	}

	userID := claims.Subject
	if userID == "" {
		return uuid.Nil, "", fmt.Errorf("missing user ID in JWT claims")
	}

	return orgID, userID, nil
}
