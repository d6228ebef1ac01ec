package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-signing-secret"

func mintToken(t *testing.T, secret string, mutate func(*jwt.RegisteredClaims)) string {
	t.Helper()
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "auth.example.com",
		Audience:  jwt.ClaimStrings{"session-keys"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	if mutate != nil {
		mutate(&claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier([]byte(testSecret), "auth.example.com", "session-keys")

	userID, err := v.Verify(mintToken(t, testSecret, nil))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "alice" {
		t.Errorf("userID = %s, want alice", userID)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := NewVerifier([]byte(testSecret), "auth.example.com", "session-keys")

	cases := map[string]string{
		"wrong secret": mintToken(t, "other-secret", nil),
		"expired": mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().UTC().Add(-time.Minute))
		}),
		"wrong issuer": mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
			c.Issuer = "someone-else"
		}),
		"wrong audience": mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
			c.Audience = jwt.ClaimStrings{"other-service"}
		}),
		"no subject": mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
			c.Subject = ""
		}),
		"garbage": "not.a.token",
	}
	for name, token := range cases {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestVerifySkipsEmptyIssuerAndAudience(t *testing.T) {
	v := NewVerifier([]byte(testSecret), "", "")

	token := mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
		c.Issuer = "anything"
		c.Audience = nil
	})
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestFromAuthorizationHeader(t *testing.T) {
	v := NewVerifier([]byte(testSecret), "auth.example.com", "session-keys")
	token := mintToken(t, testSecret, nil)

	userID, err := v.FromAuthorizationHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("FromAuthorizationHeader: %v", err)
	}
	if userID != "alice" {
		t.Errorf("userID = %s, want alice", userID)
	}

	for _, header := range []string{"", token, "Basic abc"} {
		if _, err := v.FromAuthorizationHeader(header); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("header %q: err = %v, want ErrInvalidToken", header, err)
		}
	}
}
