package auth

import (
	"fmt"
	"time"

	"github.com/aarnajewels/storefront-core/pkg/config"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintSessionToken issues a signed JWT for the provided identity using the
// configured TTL.
func MintSessionToken(cfg config.AuthConfig, now time.Time, identity Identity) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if !identity.LoggedIn() {
		return "", fmt.Errorf("identity user id is required")
	}

	claims := SessionClaims{
		UserID: identity.UserID,
		Email:  identity.Email,
		Name:   identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL())),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates the JWT string and returns the identity it
// carries.
func ParseSessionToken(cfg config.AuthConfig, tokenString string) (Identity, error) {
	if cfg.Secret == "" {
		return Identity{}, fmt.Errorf("jwt secret is required")
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}

	return claims.Identity(), nil
}

// RequireUser returns an unauthorized error unless the identity carries a
// stable user id. Mutating operations gate on this before touching the
// remote store.
func RequireUser(identity Identity) error {
	if identity.LoggedIn() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "a signed-in user is required")
}
