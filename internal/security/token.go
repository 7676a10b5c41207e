package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coursehub/internal/ids"
	"coursehub/internal/models"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

type TokenKind string

const (
	KindAccess     TokenKind = "access"
	KindRefresh    TokenKind = "refresh"
	KindActivation TokenKind = "activation"
	KindReset      TokenKind = "reset"
)

type Clock func() time.Time

type SessionClaims struct {
	AccountID string    `json:"id"`
	Role      string    `json:"role,omitempty"`
	Kind      TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

type ActivationClaims struct {
	Registration models.PendingRegistration `json:"pendingRegistration"`
	Code         string                     `json:"activationCode"`
	Kind         TokenKind                  `json:"typ"`
	jwt.RegisteredClaims
}

type ResetClaims struct {
	Account models.AccountSnapshot `json:"accountSnapshot"`
	Code    string                 `json:"resetCode"`
	Kind    TokenKind              `json:"typ"`
	jwt.RegisteredClaims
}

type kindedClaims interface {
	jwt.Claims
	tokenKind() TokenKind
}

func (c *SessionClaims) tokenKind() TokenKind    { return c.Kind }
func (c *ActivationClaims) tokenKind() TokenKind { return c.Kind }
func (c *ResetClaims) tokenKind() TokenKind      { return c.Kind }

type TokenSettings struct {
	AccessSecret     string
	RefreshSecret    string
	ActivationSecret string
	ResetSecret      string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ActivationTTL    time.Duration
	ResetTTL         time.Duration
}

type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Tokens signs and verifies every stateless token the service hands out.
// Each kind has its own secret and a "typ" claim, so a token minted for one
// purpose never verifies as another.
type Tokens struct {
	settings TokenSettings
	now      Clock
}

func NewTokens(settings TokenSettings, now Clock) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{settings: settings, now: now}
}

func (t *Tokens) IssuePair(accountID string, role models.Role) (TokenPair, error) {
	access, err := t.issueSession(accountID, string(role), KindAccess, t.settings.AccessSecret, t.settings.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.issueSession(accountID, "", KindRefresh, t.settings.RefreshSecret, t.settings.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (t *Tokens) issueSession(accountID, role string, kind TokenKind, secret string, ttl time.Duration) (IssuedToken, error) {
	claims := &SessionClaims{
		AccountID: accountID,
		Role:      role,
		Kind:      kind,
	}
	registered, issued := t.registered(accountID, ttl)
	claims.RegisteredClaims = registered

	value, err := sign(secret, claims)
	if err != nil {
		return IssuedToken{}, err
	}
	issued.Value = value
	return issued, nil
}

func (t *Tokens) ParseAccess(value string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := t.parse(value, t.settings.AccessSecret, KindAccess, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *Tokens) ParseRefresh(value string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := t.parse(value, t.settings.RefreshSecret, KindRefresh, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *Tokens) IssueActivation(registration models.PendingRegistration, code string) (IssuedToken, error) {
	claims := &ActivationClaims{
		Registration: registration,
		Code:         code,
		Kind:         KindActivation,
	}
	registered, issued := t.registered("", t.settings.ActivationTTL)
	claims.RegisteredClaims = registered

	value, err := sign(t.settings.ActivationSecret, claims)
	if err != nil {
		return IssuedToken{}, err
	}
	issued.Value = value
	return issued, nil
}

func (t *Tokens) ParseActivation(value string) (*ActivationClaims, error) {
	claims := &ActivationClaims{}
	if err := t.parse(value, t.settings.ActivationSecret, KindActivation, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *Tokens) IssueReset(account models.AccountSnapshot, code string) (IssuedToken, error) {
	claims := &ResetClaims{
		Account: account,
		Code:    code,
		Kind:    KindReset,
	}
	registered, issued := t.registered(account.ID, t.settings.ResetTTL)
	claims.RegisteredClaims = registered

	value, err := sign(t.settings.ResetSecret, claims)
	if err != nil {
		return IssuedToken{}, err
	}
	issued.Value = value
	return issued, nil
}

func (t *Tokens) ParseReset(value string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := t.parse(value, t.settings.ResetSecret, KindReset, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Remaining is how long a verified token has left to live. Never negative.
func (t *Tokens) Remaining(claims jwt.RegisteredClaims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	left := claims.ExpiresAt.Time.Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}

func (t *Tokens) registered(subject string, ttl time.Duration) (jwt.RegisteredClaims, IssuedToken) {
	now := t.now()
	issued := IssuedToken{
		ID:        ids.New(),
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
	}
	return jwt.RegisteredClaims{
		ID:        issued.ID,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(issued.ExpiresAt),
	}, issued
}

func sign(secret string, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (t *Tokens) parse(value string, secret string, kind TokenKind, claims kindedClaims) error {
	if value == "" {
		return fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}

	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !token.Valid || claims.tokenKind() != kind {
		return fmt.Errorf("%w: unexpected token kind", ErrTokenMalformed)
	}
	return nil
}
