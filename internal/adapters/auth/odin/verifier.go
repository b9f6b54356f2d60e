package odin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dawailo/internal/ports/auth"
)

var (
	ErrTokenEmpty  = errors.New("token is empty")
	ErrUnknownRole = errors.New("odin claims carry unknown role")
)

// Verifier implementa auth.AuthVerifier usando Odin.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrOdinNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("odin verify failed: %w", err)
	}

	// Sin rol conocido no hay forma de autorizar nada en este servicio.
	if !claims.Role.Valid() {
		return auth.Claims{}, ErrUnknownRole
	}

	return claims, nil
}
