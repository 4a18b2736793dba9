package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Authenticate resolves a raw bearer token to the owning user.
	// Unknown, revoked and expired keys all return ErrUnauthorized.
	Authenticate(ctx context.Context, rawKey string) (Identity, error)

	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
}

type Identity struct {
	UserID string
	KeyID  string
}

type CreateRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// SecretResponse carries the plaintext key. It is returned exactly once.
type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

type Response struct {
	KeyID      string     `json:"key_id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidKeyID = errors.New("invalid_key_id")
	ErrNotFound     = errors.New("not_found")
	ErrUnauthorized = errors.New("unauthorized")
)
