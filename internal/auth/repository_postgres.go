package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: pool}
}

func (r *postgresRepository) Create(ctx context.Context, token *AccessToken) error {
	query := `
		INSERT INTO inventory.access_tokens (id, user_id, name, token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Exec(ctx, query, token.ID, token.UserID, token.Name, token.TokenHash, token.CreatedAt); err != nil {
		return fmt.Errorf("repository: failed to insert access token: %w", err)
	}
	return nil
}

func (r *postgresRepository) FindPrincipal(ctx context.Context, tokenHash string, usedAt time.Time) (*Principal, error) {
	query := `
		UPDATE inventory.access_tokens t
		SET last_used_at = $2
		FROM inventory.users u
		WHERE t.token_hash = $1 AND u.id = t.user_id
		RETURNING u.id, u.name, u.email, u.role
	`
	var p Principal
	err := r.db.QueryRow(ctx, query, tokenHash, usedAt).Scan(&p.UserID, &p.Name, &p.Email, &p.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("repository: failed to resolve access token: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM inventory.access_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("repository: failed to delete access token: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUnauthenticated
	}
	return nil
}
