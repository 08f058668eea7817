package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type sqliteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) Create(ctx context.Context, token *AccessToken) error {
	query := `
		INSERT INTO access_tokens (id, user_id, name, token_hash, created_at)
		VALUES (:id, :user_id, :name, :token_hash, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("repository: failed to insert access token: %w", err)
	}
	return nil
}

func (r *sqliteRepository) FindPrincipal(ctx context.Context, tokenHash string, usedAt time.Time) (*Principal, error) {
	query := `
		SELECT u.id, u.name, u.email, u.role
		FROM access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = ?
	`
	var p Principal
	err := r.db.QueryRowxContext(ctx, query, tokenHash).Scan(&p.UserID, &p.Name, &p.Email, &p.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("repository: failed to resolve access token: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET last_used_at = ? WHERE token_hash = ?`, usedAt, tokenHash); err != nil {
		return nil, fmt.Errorf("repository: failed to touch access token: %w", err)
	}

	return &p, nil
}

func (r *sqliteRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("repository: failed to delete access token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUnauthenticated
	}
	return nil
}
