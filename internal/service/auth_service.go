package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/internal/security"
	"github.com/diagnosis/puffit/pkg/auth"
	"github.com/diagnosis/puffit/pkg/config"
	"github.com/google/uuid"
)

type AuthService interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type authService struct {
	users   repository.UserRepository
	pending repository.PendingUserRepository
	hasher  security.PasswordHasher
	config  config.AuthConfig
}

func NewAuthService(
	users repository.UserRepository,
	pending repository.PendingUserRepository,
	hasher security.PasswordHasher,
	cfg config.AuthConfig,
) AuthService {
	return &authService{users: users, pending: pending, hasher: hasher, config: cfg}
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, s.pendingLoginError(ctx, req)
	}

	valid, err := s.hasher.Compare(req.Password, user.HashedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}
	if user.Status != domain.StatusActive {
		return nil, domain.ErrAccountInactive
	}

	accessToken, err := auth.NewSessionToken(user.ID, user.Email, user.Name, s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.SessionTTL.Seconds()),
		User:        user.ToUserInfo(),
	}, nil
}

// pendingLoginError only admits that a registration is awaiting
// verification when the caller also knows its password.
func (s *authService) pendingLoginError(ctx context.Context, req *domain.LoginRequest) error {
	p, err := s.pending.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to find pending user: %w", err)
	}
	if p == nil {
		return domain.ErrInvalidCredentials
	}
	if ok, err := s.hasher.Compare(req.Password, p.HashedPassword); err != nil || !ok {
		return domain.ErrInvalidCredentials
	}
	return domain.ErrEmailNotVerified
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}
