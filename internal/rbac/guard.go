package rbac

import (
	"context"
	"errors"

	"coursehub/internal/models"
	"coursehub/internal/service"
)

// Decision is the outcome of an application guard check for one request.
type Decision int

const (
	Unknown Decision = iota
	Unauthenticated
	Forbidden
	Authorized
)

func (d Decision) String() string {
	switch d {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Policy lists the roles allowed through. An empty policy admits any
// authenticated account.
type Policy struct {
	roles map[models.Role]struct{}
}

func RequireRole(roles ...models.Role) Policy {
	set := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return Policy{roles: set}
}

// Authenticated admits any account holding a valid access token.
func Authenticated() Policy {
	return Policy{}
}

func (p Policy) Allows(role models.Role) bool {
	if len(p.roles) == 0 {
		return true
	}
	_, ok := p.roles[role]
	return ok
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Account, error)
}

// Guard is the authoritative check. The role it decides on comes from the
// account behind a verified access token, never from the role cookie.
type Guard struct {
	auth Authenticator
}

func NewGuard(auth Authenticator) *Guard {
	return &Guard{auth: auth}
}

// Check returns a non-nil error only when the decision could not be made,
// e.g. the account store is unreachable. Token problems are Unauthenticated.
func (g *Guard) Check(ctx context.Context, accessToken string, policy Policy) (Decision, models.Account, error) {
	if accessToken == "" {
		return Unauthenticated, models.Account{}, nil
	}

	account, err := g.auth.Authenticate(ctx, accessToken)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			return Unauthenticated, models.Account{}, nil
		}
		return Unknown, models.Account{}, err
	}

	if !policy.Allows(account.Role) {
		return Forbidden, account, nil
	}
	return Authorized, account, nil
}
