package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/internal/mailer"
	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/internal/security"
	"github.com/diagnosis/puffit/internal/token"
	"github.com/diagnosis/puffit/pkg/events"
	"github.com/diagnosis/puffit/pkg/logger"
)

type RegistrationService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegistrationResult, error)
}

type registrationService struct {
	users    repository.UserRepository
	pending  repository.PendingUserRepository
	hasher   security.PasswordHasher
	issuer   *token.Issuer
	mailer   mailer.Service
	eventBus events.Publisher
}

func NewRegistrationService(
	users repository.UserRepository,
	pending repository.PendingUserRepository,
	hasher security.PasswordHasher,
	issuer *token.Issuer,
	mailer mailer.Service,
	eventBus events.Publisher,
) RegistrationService {
	return &registrationService{
		users:    users,
		pending:  pending,
		hasher:   hasher,
		issuer:   issuer,
		mailer:   mailer,
		eventBus: eventBus,
	}
}

func (s *registrationService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegistrationResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, domain.ErrEmailInUse
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tok, expiresAt, err := s.issuer.Issue()
	if err != nil {
		RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to issue verification token: %w", err)
	}

	p := &domain.PendingUser{
		Email:                    req.Email,
		Name:                     req.Name,
		HashedPassword:           hash,
		VerificationToken:        tok,
		VerificationTokenExpires: expiresAt,
	}
	created, err := s.pending.Upsert(ctx, p)
	if errors.Is(err, domain.ErrEmailInUse) {
		RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, err
	}
	if err != nil {
		RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store pending registration: %w", err)
	}

	// The pending row stays if delivery fails; registering again re-issues.
	if err := s.mailer.SendVerificationEmail(ctx, p.Email, p.Name, tok); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "email", p.Email)
		RegistrationsTotal.WithLabelValues("mail_failed").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}

	outcome := "created"
	if !created {
		outcome = "resent"
	}
	RegistrationsTotal.WithLabelValues(outcome).Inc()
	logger.InfoContext(ctx, "Pending registration stored", "email", p.Email, "outcome", outcome)

	publish(ctx, s.eventBus, events.UserRegistered, events.UserRegisteredEvent{
		Email:     p.Email,
		Resent:    !created,
		ExpiresAt: expiresAt.UTC(),
	})

	return &domain.RegistrationResult{
		Email:     p.Email,
		Resent:    !created,
		ExpiresAt: expiresAt,
	}, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
