// Package tokens mints and verifies the application's HS256 bearer tokens.
// Access tokens are short-lived and stateless; refresh tokens are longer-lived
// and stored (encrypted) per device by the accounts package.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tyemirov/paceline/internal/fault"
)

// TokenType distinguishes the two token classes. Verification rejects a token
// presented as the wrong class to prevent privilege confusion.
type TokenType string

const (
	// TypeAccess identifies a user for one request.
	TypeAccess TokenType = "access"
	// TypeRefresh mints new access tokens for one device.
	TypeRefresh TokenType = "refresh"
)

// Clock supplies wall-clock time for issuance and expiry checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Claims are embedded in every signed token.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens. It is a pure function of its inputs,
// the clock, and the static signing secret.
type Service struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      Clock
}

// NewService constructs a token service.
func NewService(signingKey []byte, issuer string, accessTTL time.Duration, refreshTTL time.Duration, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		signingKey: signingKey,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}
}

// IssueAccess mints a signed access token for the user.
func (service *Service) IssueAccess(userID uuid.UUID) (string, error) {
	signed, _, err := service.issue(userID, TypeAccess, service.accessTTL)
	return signed, err
}

// IssueRefresh mints a signed refresh token and reports its expiry.
func (service *Service) IssueRefresh(userID uuid.UUID) (string, time.Time, error) {
	return service.issue(userID, TypeRefresh, service.refreshTTL)
}

func (service *Service) issue(userID uuid.UUID, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	if userID == uuid.Nil {
		return "", time.Time{}, fault.Wrap(fault.ErrValidation, "tokens.issue.empty_user", nil)
	}
	issuedAt := service.clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    service.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(service.signingKey)
	if signErr != nil {
		return "", time.Time{}, fault.Wrap(fault.ErrInternal, "tokens.sign", signErr)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, token type, and expiry, in that order. A
// structurally invalid token fails with the token-invalid class; a valid but
// stale token fails with the distinct token-expired class so the refresh flow
// can react differently.
func (service *Service) Verify(tokenText string, expectedType TokenType) (Claims, error) {
	parsed, parseErr := jwt.ParseWithClaims(tokenText, &Claims{}, func(parsedToken *jwt.Token) (interface{}, error) {
		return service.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(service.clock.Now),
	)
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenMalformed) ||
			errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) ||
			errors.Is(parseErr, jwt.ErrTokenUnverifiable) {
			return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.parse", parseErr)
		}
		// Signature and structure are sound past this point; a mistyped
		// token is reported as invalid before expiry is considered.
		if claims := claimsFromParsed(parsed); claims != nil && claims.TokenType != expectedType {
			return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.type_mismatch", nil)
		}
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return Claims{}, fault.Wrap(fault.ErrTokenExpired, "tokens.verify.expired", parseErr)
		}
		return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.parse", parseErr)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.claims", nil)
	}
	if service.issuer != "" && claims.Issuer != service.issuer {
		return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.issuer", nil)
	}
	if claims.TokenType != expectedType {
		return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.type_mismatch", nil)
	}
	if claims.UserID == uuid.Nil {
		return Claims{}, fault.Wrap(fault.ErrTokenInvalid, "tokens.verify.empty_user", nil)
	}
	return *claims, nil
}

func claimsFromParsed(parsed *jwt.Token) *Claims {
	if parsed == nil {
		return nil
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
