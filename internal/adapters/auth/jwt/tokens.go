package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dawailo/internal/ports/auth"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrSecretTooShort = errors.New("jwt secret too short")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("expired token")
)

const issuer = "dawailo"

type Config struct {
	Secret string
	TTL    time.Duration
}

// Tokens implementa auth.AuthVerifier y auth.TokenIssuer con HS256.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	gojwt.RegisteredClaims
}

func New(cfg Config) (*Tokens, error) {
	if len(cfg.Secret) < 16 {
		return nil, ErrSecretTooShort
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (t *Tokens) Issue(_ context.Context, c auth.Claims) (string, time.Time, error) {
	if strings.TrimSpace(c.UserID) == "" || !c.Role.Valid() {
		return "", time.Time{}, ErrTokenInvalid
	}

	now := t.now()
	exp := now.Add(t.ttl)

	claims := sessionClaims{
		Email: c.Email,
		Name:  c.Name,
		Role:  string(c.Role),
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   c.UserID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}

func (t *Tokens) Verify(_ context.Context, raw string) (auth.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return auth.Claims{}, ErrTokenInvalid
	}

	claims := &sessionClaims{}
	token, err := gojwt.ParseWithClaims(raw, claims, func(token *gojwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return t.secret, nil
	},
		gojwt.WithIssuer(issuer),
		gojwt.WithTimeFunc(t.now),
		gojwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return auth.Claims{}, ErrTokenExpired
		}
		return auth.Claims{}, ErrTokenInvalid
	}
	if !token.Valid {
		return auth.Claims{}, ErrTokenInvalid
	}

	role := auth.Role(claims.Role)
	if strings.TrimSpace(claims.Subject) == "" || !role.Valid() {
		return auth.Claims{}, ErrTokenInvalid
	}

	return auth.Claims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   role,
	}, nil
}
