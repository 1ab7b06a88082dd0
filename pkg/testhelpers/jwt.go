package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaforge/vaforge-engine/pkg/auth"
)

// TestJWTSecret is the HS256 secret handlers under test are configured with.
const TestJWTSecret = "vaforge-test-secret"

// GenerateTestJWT creates an HS256 access token for the given user and organization.
func GenerateTestJWT(t *testing.T, sub, orgID, email string) string {
	t.Helper()

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrganizationID: orgID,
		Email:          email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, sub, orgID, email string) string {
	return "Bearer " + GenerateTestJWT(t, sub, orgID, email)
}
