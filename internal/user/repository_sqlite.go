package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vasiliy-maslov/inventory-service/internal/db"
)

type sqliteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *sqliteRepository) get(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where+` = ?`, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by %s: %w", where, err)
	}
	return &u, nil
}

func (r *sqliteRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, "id", id)
}

func (r *sqliteRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, "email", email)
}

func (r *sqliteRepository) List(ctx context.Context) ([]User, error) {
	users := make([]User, 0)
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("repository: failed to query users: %w", err)
	}
	return users, nil
}

func (r *sqliteRepository) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC()

	query := `
		UPDATE users
		SET name = ?, email = ?, password_hash = COALESCE(NULLIF(?, ''), password_hash), role = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, user.Name, user.Email, user.PasswordHash, string(user.Role), now, user.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to update user %s: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for user %s: %w", user.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	stored, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func (r *sqliteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for user %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
