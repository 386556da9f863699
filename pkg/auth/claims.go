package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the storefront needs from the authentication
// collaborator: a stable opaque user id plus a display profile. "Logged
// in" means a non-empty UserID is available.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// LoggedIn reports whether a stable user identifier is present.
func (i Identity) LoggedIn() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// SessionClaims is the typed JWT carried by signed-in customers.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity projects the claims into the collaborator shape.
func (c *SessionClaims) Identity() Identity {
	if c == nil {
		return Identity{}
	}
	return Identity{
		UserID: c.UserID,
		Email:  c.Email,
		Name:   c.Name,
	}
}
