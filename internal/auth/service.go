package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

const tokenBytes = 32

type Service interface {
	// IssueToken creates a new bearer token for u and returns its plaintext.
	IssueToken(ctx context.Context, u *user.User, name string) (string, error)
	Resolve(ctx context.Context, plaintext string) (Principal, error)
	Revoke(ctx context.Context, plaintext string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func hashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (s *service) IssueToken(ctx context.Context, u *user.User, name string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("service: failed to generate token: %w", err)
	}
	plaintext := base64.RawURLEncoding.EncodeToString(raw)

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("service: failed to generate token id: %w", err)
	}

	token := &AccessToken{
		ID:        id,
		UserID:    u.ID,
		Name:      name,
		TokenHash: hashToken(plaintext),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("service: failed to store access token")
		return "", fmt.Errorf("service: failed to issue token: %w", err)
	}

	log.Info().Stringer("user_id", u.ID).Str("token_name", name).Msg("service: access token issued")
	return plaintext, nil
}

func (s *service) Resolve(ctx context.Context, plaintext string) (Principal, error) {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return Principal{}, ErrUnauthenticated
	}

	p, err := s.repo.FindPrincipal(ctx, hashToken(plaintext), s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("service: failed to resolve token: %w", err)
	}

	return *p, nil
}

func (s *service) Revoke(ctx context.Context, plaintext string) error {
	if err := s.repo.DeleteByHash(ctx, hashToken(strings.TrimSpace(plaintext))); err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("service: failed to revoke token: %w", err)
	}
	return nil
}
