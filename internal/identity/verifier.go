package identity

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nodeboard/nodeboard/internal/config"
	"go.uber.org/fx"
)

var (
	ErrMissingSecret = errors.New("missing_auth_secret")
	ErrInvalidToken  = errors.New("invalid_token")
)

// Identity is the stable user identity carried by a verified bearer credential.
type Identity struct {
	UserID snowflake.ID
	Email  string
	Name   string
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier validates bearer credentials issued by the account service.
type Verifier struct {
	secret []byte
}

func NewVerifier(cfg config.Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a raw bearer token and returns the identity it
// carries. Any parse, signature, or expiry failure yields ErrInvalidToken.
func (v *Verifier) Verify(rawToken string) (*Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	var parsed claims
	token, err := jwt.ParseWithClaims(rawToken, &parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(parsed.Subject))
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID: userID,
		Email:  strings.TrimSpace(parsed.Email),
		Name:   strings.TrimSpace(parsed.Name),
	}, nil
}

// Module provides the bearer credential verifier.
var Module = fx.Module("identity",
	fx.Provide(NewVerifier),
)
