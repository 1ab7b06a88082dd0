package database

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
)

// MembershipVerifier confirms that a user belongs to the organization whose
// scope is set on ctx.
type MembershipVerifier interface {
	IsMember(ctx context.Context, orgID uuid.UUID, userID string) (bool, error)
}

// WithTenantContext creates middleware that sets up an organization-scoped DB connection.
// It runs AFTER auth middleware and uses the organization ID from the token claims.
// When members is non-nil the caller's membership is verified before the handler runs.
func WithTenantContext(db *DB, members MembershipVerifier, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok || claims.OrganizationID == "" {
				logger.Warn("Missing organization in claims")
				writeError(w, http.StatusForbidden, "no_organization", "Token carries no organization")
				return
			}

			orgID, err := uuid.Parse(claims.OrganizationID)
			if err != nil {
				logger.Warn("Invalid organization ID format in claims",
					zap.String("organization_id", claims.OrganizationID),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_organization_id", "Invalid organization ID format")
				return
			}

			scope, err := db.WithTenant(r.Context(), orgID)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.String("organization_id", orgID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			ctx := SetTenantScope(r.Context(), scope)

			if members != nil {
				member, err := members.IsMember(ctx, orgID, claims.Subject)
				if err != nil {
					logger.Error("Failed to verify membership",
						zap.String("organization_id", orgID.String()),
						zap.Error(err))
					writeError(w, http.StatusInternalServerError, "database_error", "Failed to verify membership")
					return
				}
				if !member {
					writeError(w, http.StatusForbidden, "not_a_member", "You are not a member of this organization")
					return
				}
			}

			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
