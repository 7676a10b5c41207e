package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coursehub/internal/models"
)

var (
	ErrUnknownProvider  = errors.New("unknown identity provider")
	ErrUnverifiedEmail  = errors.New("identity provider did not verify the email")
	ErrInvalidAssertion = errors.New("identity assertion rejected")
)

// Verifier checks a provider credential and returns what the provider asserts.
type Verifier interface {
	Verify(ctx context.Context, credential string) (models.AssertedIdentity, error)
}

// Registry routes a credential to the verifier registered for its provider.
type Registry struct {
	verifiers map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]Verifier)}
}

func (r *Registry) Register(provider string, verifier Verifier) {
	r.verifiers[strings.ToLower(provider)] = verifier
}

func (r *Registry) Verify(ctx context.Context, provider string, credential string) (models.AssertedIdentity, error) {
	verifier, ok := r.verifiers[strings.ToLower(provider)]
	if !ok {
		return models.AssertedIdentity{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	asserted, err := verifier.Verify(ctx, credential)
	if err != nil {
		return models.AssertedIdentity{}, err
	}
	asserted.Provider = strings.ToLower(provider)
	return asserted, nil
}
