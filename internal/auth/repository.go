package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type AccessToken struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	Name       string     `db:"name"`
	TokenHash  string     `db:"token_hash"`
	LastUsedAt *time.Time `db:"last_used_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, token *AccessToken) error
	// FindPrincipal resolves a token hash to its owner and records the use.
	FindPrincipal(ctx context.Context, tokenHash string, usedAt time.Time) (*Principal, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
}
