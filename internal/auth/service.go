package auth

import (
	"context"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/librarium/librarium/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	codec *TokenCodec
}

// NewService constructs a new Service.
func NewService(repo Repository, codec *TokenCodec) *Service {
	return &Service{repo: repo, codec: codec}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	acc, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, claims, err := s.codec.Issue(strconv.FormatInt(acc.ID, 10))
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, Category: acc.Category}, nil
}
