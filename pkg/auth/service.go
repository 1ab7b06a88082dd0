package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization  = errors.New("missing authorization")
	ErrInvalidAuthFormat     = errors.New("invalid authorization header format")
	ErrMissingOrganizationID = errors.New("missing organization ID in token")
)

// DefaultCookieName is the cookie carrying the access token for browser clients.
const DefaultCookieName = "access_token"

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request.
	// It checks for the token in:
	//   1. The access token cookie (browser clients)
	//   2. Authorization header with "Bearer" scheme (API and MCP clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireOrganizationID validates that the claims contain an organization ID.
	RequireOrganizationID(claims *Claims) error
}

type authService struct {
	validator  TokenValidator
	cookieName string
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService reading tokens from cookieName.
func NewAuthService(validator TokenValidator, cookieName string, logger *zap.Logger) AuthService {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &authService{
		validator:  validator,
		cookieName: cookieName,
		logger:     logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		tokenString = cookie.Value
		tokenSource = "cookie"
	} else {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.logger.Debug("No JWT found in request",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			return nil, "", ErrMissingAuthorization
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || scheme != "Bearer" || token == "" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = token
		tokenSource = "header"
	}

	claims, err := s.validator.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func (s *authService) RequireOrganizationID(claims *Claims) error {
	if claims.OrganizationID == "" {
		return ErrMissingOrganizationID
	}
	return nil
}

var _ AuthService = (*authService)(nil)
