package httpapi

import (
	"context"

	"google.golang.org/api/idtoken"

	"github.com/tyemirov/paceline/internal/accounts"
	"github.com/tyemirov/paceline/internal/fault"
)

// NewGoogleVerifier validates Google id tokens against the web client id and
// extracts the verified identity. Unverified emails are rejected.
func NewGoogleVerifier(webClientID string) SocialVerifier {
	return func(ctx context.Context, idTokenText string) (accounts.SocialIdentity, error) {
		validator, validatorErr := idtoken.NewValidator(ctx)
		if validatorErr != nil {
			return accounts.SocialIdentity{}, fault.Internal("httpapi.google.validator", validatorErr)
		}
		payload, validateErr := validator.Validate(ctx, idTokenText, webClientID)
		if validateErr != nil {
			return accounts.SocialIdentity{}, fault.Wrap(fault.ErrTokenInvalid, "httpapi.google.validate", validateErr)
		}

		issuerValue, okIssuer := payload.Claims["iss"].(string)
		if !okIssuer || (issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com") {
			return accounts.SocialIdentity{}, fault.Wrap(fault.ErrTokenInvalid, "httpapi.google.issuer", nil)
		}
		googleSub, _ := payload.Claims["sub"].(string)
		userEmail, _ := payload.Claims["email"].(string)
		emailVerified, _ := payload.Claims["email_verified"].(bool)
		userDisplayName, _ := payload.Claims["name"].(string)
		if googleSub == "" || userEmail == "" || !emailVerified {
			return accounts.SocialIdentity{}, fault.Wrap(fault.ErrTokenInvalid, "httpapi.google.unverified_identity", nil)
		}

		return accounts.SocialIdentity{
			Provider:    "google",
			ExternalSub: googleSub,
			Email:       userEmail,
			Name:        userDisplayName,
		}, nil
	}
}
