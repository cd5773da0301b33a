// Package tokenverify lets sibling services validate paceline access tokens
// without importing the server internals: signature, issuer, token type, and
// expiry checks over the bearer header.
package tokenverify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config configures the Verifier.
type Config struct {
	SigningKey []byte
	Issuer     string
	Clock      Clock
}

// DefaultContextKey is used by GinMiddleware when no explicit key is provided.
const DefaultContextKey = "access_claims"

const accessTokenType = "access"

// Sentinel errors exposed by the verifier.
var (
	ErrMissingSigningKey = errors.New("token.verifier.missing_signing_key")
	ErrMissingIssuer     = errors.New("token.verifier.missing_issuer")
	ErrMissingToken      = errors.New("token.verifier.missing_token")
	ErrInvalidToken      = errors.New("token.verifier.invalid_token")
	ErrInvalidIssuer     = errors.New("token.verifier.invalid_issuer")
	ErrWrongTokenType    = errors.New("token.verifier.wrong_token_type")
	ErrTokenExpired      = errors.New("token.verifier.expired")
)

// Verifier validates paceline access tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
	clock      Clock
}

// Claims is the payload embedded inside paceline tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GetUserID returns the user identifier from the token.
func (claims *Claims) GetUserID() string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// GetExpiresAt returns the expiry timestamp.
func (claims *Claims) GetExpiresAt() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// New constructs a Verifier after validating the supplied configuration.
func New(configuration Config) (*Verifier, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("token.verifier.new: %w", ErrMissingSigningKey)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("token.verifier.new: %w", ErrMissingIssuer)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Verifier{
		signingKey: configuration.SigningKey,
		issuer:     configuration.Issuer,
		clock:      clock,
	}, nil
}

// VerifyToken validates the provided JWT string and returns the parsed claims.
func (verifier *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrMissingToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return verifier.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return verifier.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrInvalidToken)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrInvalidToken)
	}
	if claims.Issuer != verifier.issuer {
		return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrInvalidIssuer)
	}
	if claims.TokenType != accessTokenType {
		return nil, fmt.Errorf("token.verifier.verify_token: %w", ErrWrongTokenType)
	}
	return claims, nil
}

// VerifyRequest reads the Authorization header from the request and validates it.
func (verifier *Verifier) VerifyRequest(request *http.Request) (*Claims, error) {
	if request == nil {
		return nil, fmt.Errorf("token.verifier.verify_request: %w", ErrMissingToken)
	}
	authorization := request.Header.Get("Authorization")
	if !strings.HasPrefix(authorization, "Bearer ") {
		return nil, fmt.Errorf("token.verifier.verify_request: %w", ErrMissingToken)
	}
	return verifier.VerifyToken(strings.TrimPrefix(authorization, "Bearer "))
}

// GinMiddleware returns a Gin middleware that validates the bearer token and injects claims.
func (verifier *Verifier) GinMiddleware(contextKey string) gin.HandlerFunc {
	if strings.TrimSpace(contextKey) == "" {
		contextKey = DefaultContextKey
	}
	return func(contextGin *gin.Context) {
		claims, err := verifier.VerifyRequest(contextGin.Request)
		if err != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(contextKey, claims)
		contextGin.Next()
	}
}
