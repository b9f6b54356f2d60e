package auth

import (
	"context"
	"time"
)

// AuthVerifier verifica un token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// TokenIssuer emite tokens para un usuario ya autenticado (login).
type TokenIssuer interface {
	Issue(ctx context.Context, claims Claims) (token string, expiresAt time.Time, err error)
}
