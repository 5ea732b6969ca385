package identity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nodeboard/nodeboard/internal/config"
	"github.com/nodeboard/nodeboard/internal/identity"
)

const testSecret = "test_secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerify(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	userID := node.Generate()

	verifier, err := identity.NewVerifier(config.Config{AuthJWTSecret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	raw := signToken(t, testSecret, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "bob@example.com",
		"name":  "Bob",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	ident, err := verifier.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, ident.UserID)
	}
	if ident.Email != "bob@example.com" || ident.Name != "Bob" {
		t.Fatalf("unexpected identity %+v", ident)
	}
}

func TestVerifyRejections(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	userID := node.Generate()

	verifier, err := identity.NewVerifier(config.Config{AuthJWTSecret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	cases := map[string]string{
		"empty token": "",
		"garbage":     "not.a.token",
		"wrong secret": signToken(t, "other_secret", jwt.MapClaims{
			"sub": userID.String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": signToken(t, testSecret, jwt.MapClaims{
			"sub": userID.String(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"missing subject": signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(raw); !errors.Is(err, identity.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	if _, err := identity.NewVerifier(config.Config{}); !errors.Is(err, identity.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
