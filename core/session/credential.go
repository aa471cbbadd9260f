package session

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("expired credential")
)

// Claims are the token claims the API issues on login.
// The subject is read from `sub`, or from `id` for tokens that only carry the user id.
type Claims struct {
	jwt.StandardClaims
	UserID    string `json:"id,omitempty"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsActive  *bool  `json:"isActive,omitempty"`
}

func (c Claims) subject() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Credential is an opaque bearer token along with its decoded claims.
type Credential struct {
	Token  string
	Claims Claims
}

// Decode decodes a bearer token without verifying its signature: the API remains the judge of its validity.
// Tokens without a subject, with a role outside of user.AllRoles or past their expiry are rejected.
func Decode(token string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, errors.Wrap(ErrMalformedCredential, "empty token")
	}

	var claims Claims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil {
		return Credential{}, errors.Wrapf(ErrMalformedCredential, "parsing token: %v", err)
	}
	if claims.subject() == "" {
		return Credential{}, errors.Wrap(ErrMalformedCredential, "missing subject")
	}
	role, ok := user.ParseRole(claims.Role)
	if !ok {
		return Credential{}, errors.Wrapf(ErrMalformedCredential, "invalid role %q", claims.Role)
	}
	claims.Role = string(role)
	if !claims.VerifyExpiresAt(NowFunc().Unix(), false) {
		return Credential{}, ErrExpiredCredential
	}
	return Credential{Token: token, Claims: claims}, nil
}

func (c Credential) IsZero() bool {
	return c.Token == ""
}

// ExpiresAt returns the zero time for tokens that never expire.
func (c Credential) ExpiresAt() time.Time {
	if c.Claims.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.Claims.ExpiresAt, 0)
}

// User derives the Current User from the credential claims.
func (c Credential) User() user.CurrentUser {
	active := true
	if c.Claims.IsActive != nil {
		active = *c.Claims.IsActive
	}
	return user.CurrentUser{
		ID:        c.Claims.subject(),
		Email:     c.Claims.Email,
		FirstName: c.Claims.FirstName,
		LastName:  c.Claims.LastName,
		Role:      user.Role(c.Claims.Role),
		IsActive:  active,
	}
}
