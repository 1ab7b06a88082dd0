package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockValidator is a mock implementation of TokenValidator for testing.
type mockValidator struct {
	claims   *Claims
	err      error
	lastSeen string
}

func (m *mockValidator) ValidateToken(tokenString string) (*Claims, error) {
	m.lastSeen = tokenString
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockValidator) Close() {}

func TestAuthService_ValidateRequest(t *testing.T) {
	claims := &Claims{OrganizationID: "org-1"}

	tests := []struct {
		name      string
		setup     func(r *http.Request)
		wantToken string
		wantErr   error
	}{
		{
			name:      "cookie",
			setup:     func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"}) },
			wantToken: "cookie-token",
		},
		{
			name:      "bearer header",
			setup:     func(r *http.Request) { r.Header.Set("Authorization", "Bearer header-token") },
			wantToken: "header-token",
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
				r.Header.Set("Authorization", "Bearer header-token")
			},
			wantToken: "cookie-token",
		},
		{
			name:    "missing",
			setup:   func(r *http.Request) {},
			wantErr: ErrMissingAuthorization,
		},
		{
			name:    "basic scheme",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantErr: ErrInvalidAuthFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := &mockValidator{claims: claims}
			svc := NewAuthService(validator, "", zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/api/jd/saved", nil)
			tt.setup(req)

			got, token, err := svc.ValidateRequest(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantToken, validator.lastSeen)
			assert.Same(t, claims, got)
		})
	}
}

func TestAuthService_ValidateRequest_InvalidToken(t *testing.T) {
	svc := NewAuthService(&mockValidator{err: errors.New("bad signature")}, "session", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tampered"})

	_, _, err := svc.ValidateRequest(req)
	assert.EqualError(t, err, "bad signature")
}

func TestAuthService_RequireOrganizationID(t *testing.T) {
	svc := NewAuthService(&mockValidator{}, "", zap.NewNop())

	assert.NoError(t, svc.RequireOrganizationID(&Claims{OrganizationID: "org"}))
	assert.ErrorIs(t, svc.RequireOrganizationID(&Claims{}), ErrMissingOrganizationID)
}
