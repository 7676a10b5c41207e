package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps free-form input onto the role enum. Anything that is not
// exactly "admin" or "user" is rejected.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.TrimSpace(value)) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

type Avatar struct {
	PublicID string
	URL      string
}

type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	Role         Role
	Verified     bool
	SocialOnly   bool
	Avatar       *Avatar
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingRegistration is never persisted; it only lives inside an activation token.
type PendingRegistration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type AccountSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{ID: a.ID, Name: a.DisplayName, Email: a.Email}
}

// AssertedIdentity is what a third-party identity provider vouches for.
type AssertedIdentity struct {
	Provider  string
	Email     string
	Name      string
	AvatarURL string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
