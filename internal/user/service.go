package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	// CreateUser stores a new user. PasswordHash carries the plaintext password on input.
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// UpdateUser replaces name, email and role; a non-empty PasswordHash is hashed and stored.
	UpdateUser(ctx context.Context, user *User) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	Authenticate(ctx context.Context, email, password string) (*User, error)
	// EnsureUser creates the user unless one with the same email already exists.
	EnsureUser(ctx context.Context, user *User) (*User, error)
}

type service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) Service {
	return &service{repo: repo, cost: bcrypt.DefaultCost}
}

// NewServiceWithCost is NewService with a custom bcrypt cost, mainly for tests.
func NewServiceWithCost(repo Repository, cost int) Service {
	return &service{repo: repo, cost: cost}
}

func normalize(u *User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	if u.Role == "" {
		u.Role = RoleStaff
	}

	switch {
	case u.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case u.Email == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case !u.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrValidation, u.Role)
	}

	return nil
}

func (s *service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to generate password hash")
		return "", fmt.Errorf("service: failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *service) CreateUser(ctx context.Context, user *User) (*User, error) {
	if err := normalize(user); err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	hashed, err := s.hash(user.PasswordHash)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hashed

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate user id: %w", err)
	}
	user.ID = id

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user in repository")
		return nil, fmt.Errorf("service: failed to save user: %w", err)
	}

	log.Info().Stringer("user_id", user.ID).Stringer("role", user.Role).Msg("service: user created")
	return user, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}

	return u, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}

func (s *service) UpdateUser(ctx context.Context, user *User) (*User, error) {
	if err := normalize(user); err != nil {
		return nil, err
	}

	if user.PasswordHash != "" {
		hashed, err := s.hash(user.PasswordHash)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hashed
	}

	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrEmailExists):
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Stringer("user_id", user.ID).Msg("service: failed to update user")
		return nil, fmt.Errorf("service: failed to update user by id '%s': %w", user.ID, err)
	}

	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to delete user")
		return fmt.Errorf("service: failed to delete user by id '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Msg("service: user deleted")
	return nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service: failed to load user for authentication: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", u.ID).Msg("service: password mismatch")
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *service) EnsureUser(ctx context.Context, user *User) (*User, error) {
	existing, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(user.Email)))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("service: failed to look up user: %w", err)
	}

	return s.CreateUser(ctx, user)
}
