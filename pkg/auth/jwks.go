package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator defines the interface for JWT token validation.
// This abstraction enables testing with mock implementations.
type TokenValidator interface {
	// ValidateToken validates a JWT token string and returns the claims.
	// Returns an error if the token is invalid, expired, or has an unauthorized issuer.
	ValidateToken(tokenString string) (*Claims, error)
	// Close releases any resources held by the validator.
	Close()
}

// ValidatorConfig contains configuration for token validation.
type ValidatorConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool
	// HMACSecret verifies HS256 tokens signed with a shared secret.
	HMACSecret string
	// JWKSEndpoints maps issuer URLs to their JWKS endpoint URLs for RS256 tokens.
	// Only tokens from issuers in this map are accepted.
	JWKSEndpoints map[string]string
}

// Validator validates access tokens. HS256 tokens are checked against the
// shared secret; RS256 tokens against the issuer's JWKS public keys.
type Validator struct {
	endpoints map[string]keyfunc.Keyfunc
	config    *ValidatorConfig
}

// NewValidator creates a token validator with the given configuration.
// If EnableVerification is true, it fetches JWKS from all configured endpoints.
// Returns an error if any JWKS endpoint fails to load.
func NewValidator(ctx context.Context, config *ValidatorConfig) (*Validator, error) {
	v := &Validator{
		endpoints: make(map[string]keyfunc.Keyfunc),
		config:    config,
	}

	if !config.EnableVerification {
		return v, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		v.endpoints[issuer] = jwks
	}

	return v, nil
}

// ValidateToken validates a JWT token and returns the claims.
// If verification is disabled, it parses the token without signature validation.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	if !v.config.EnableVerification {
		return v.parseUnverifiedToken(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFor,
		jwt.WithValidMethods([]string{"HS256", "RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return claims, nil
}

func (v *Validator) keyFor(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.config.HMACSecret == "" {
			return nil, errors.New("HS256 tokens are not accepted")
		}
		return []byte(v.config.HMACSecret), nil
	case *jwt.SigningMethodRSA:
		claims, ok := token.Claims.(*Claims)
		if !ok {
			return nil, errors.New("invalid claims type")
		}

		jwks, exists := v.endpoints[claims.Issuer]
		if !exists {
			return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
		}
		return jwks.KeyfuncCtx(context.Background())(token)
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

// parseUnverifiedToken parses a JWT without verifying the signature.
// Used in development mode when EnableVerification is false.
func (v *Validator) parseUnverifiedToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return claims, nil
}

// Close releases any resources held by the validator.
// Currently a no-op as keyfunc v3 doesn't require explicit cleanup.
func (v *Validator) Close() {}

var _ TokenValidator = (*Validator)(nil)
