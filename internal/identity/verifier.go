// Package identity verifies the bearer tokens the API trusts for user
// identity. The backend does not issue tokens; it only checks tokens minted
// by the platform's auth service against a shared HS256 secret.
package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, or signed
// with the wrong key.
var ErrInvalidToken = errors.New("invalid token")

// Claims holds the JWT claims the backend cares about. The subject is the
// user id every storage key is derived from.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens against a shared secret.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier returns a Verifier. issuer and audience are enforced when
// non-empty.
func NewVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, audience: audience}
}

// Verify parses and validates the token (signature, exp, iss, aud) and
// returns the subject user id.
func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", ErrInvalidToken
	}
	if v.audience != "" {
		audOk := false
		for _, a := range claims.Audience {
			if a == v.audience {
				audOk = true
				break
			}
		}
		if !audOk {
			return "", ErrInvalidToken
		}
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// FromAuthorizationHeader strips the Bearer prefix and verifies the rest.
func (v *Verifier) FromAuthorizationHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrInvalidToken
	}
	return v.Verify(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
}
