package identity

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"coursehub/internal/models"
)

type validateFunc func(ctx context.Context, token string, audience string) (*idtoken.Payload, error)

// Google verifies Google Sign-In ID tokens against the OAuth client id.
type Google struct {
	clientID string
	validate validateFunc
}

func NewGoogle(clientID string) *Google {
	return &Google{clientID: clientID, validate: idtoken.Validate}
}

func (g *Google) Verify(ctx context.Context, credential string) (models.AssertedIdentity, error) {
	payload, err := g.validate(ctx, credential, g.clientID)
	if err != nil {
		return models.AssertedIdentity{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	return assertionFromClaims(payload.Claims)
}

func assertionFromClaims(claims map[string]interface{}) (models.AssertedIdentity, error) {
	email, _ := claims["email"].(string)
	if strings.TrimSpace(email) == "" {
		return models.AssertedIdentity{}, fmt.Errorf("%w: no email claim", ErrInvalidAssertion)
	}

	// Google sends email_verified as a bool, older tokens as a string.
	switch verified := claims["email_verified"].(type) {
	case bool:
		if !verified {
			return models.AssertedIdentity{}, ErrUnverifiedEmail
		}
	case string:
		if verified != "true" {
			return models.AssertedIdentity{}, ErrUnverifiedEmail
		}
	default:
		return models.AssertedIdentity{}, ErrUnverifiedEmail
	}

	name, _ := claims["name"].(string)
	if name == "" {
		given, _ := claims["given_name"].(string)
		family, _ := claims["family_name"].(string)
		name = strings.TrimSpace(given + " " + family)
	}
	picture, _ := claims["picture"].(string)

	return models.AssertedIdentity{
		Email:     email,
		Name:      name,
		AvatarURL: picture,
	}, nil
}
